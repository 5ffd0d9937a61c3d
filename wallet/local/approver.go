package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/algodash/nftbuy/wallet"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/term"
)

// Approver models the human decision to sign. Approve blocks until a decision
// is made or ctx ends.
type Approver interface {
	Approve(ctx context.Context, txns []types.Transaction) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, txns []types.Transaction) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context,
	txns []types.Transaction) (bool, error) {

	return f(ctx, txns)
}

// AutoApprove signs everything without asking.
var AutoApprove = ApproverFunc(func(context.Context,
	[]types.Transaction) (bool, error) {

	return true, nil
})

// TerminalApprover asks on a terminal before every signature.
type TerminalApprover struct {
	// In must be a terminal.
	In *os.File

	// Out receives the transaction summary and the prompt.
	Out io.Writer
}

// NewTerminalApprover returns an approver prompting on stdin and stdout.
func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{
		In:  os.Stdin,
		Out: os.Stdout,
	}
}

// Approve prints the transactions and waits for a y/N answer.
func (a *TerminalApprover) Approve(ctx context.Context,
	txns []types.Transaction) (bool, error) {

	fd := int(a.In.Fd())
	if !term.IsTerminal(fd) {
		return false, ErrNoTerminal
	}

	fmt.Fprintf(a.Out, "About to sign %d transaction(s):\n", len(txns))
	for i, txn := range txns {
		fmt.Fprintf(a.Out, "  [%d] %s\n", i, wallet.Describe(txn))
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("unable to set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	rw := struct {
		io.Reader
		io.Writer
	}{a.In, a.Out}
	t := term.NewTerminal(rw, "Sign? [y/N] ")

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)

	// The read stays blocked until the next key press when ctx ends first.
	go func() {
		line, err := t.ReadLine()
		answers <- answer{line, err}
	}()

	select {
	case ans := <-answers:
		if ans.err != nil {
			return false, fmt.Errorf("unable to read answer: %w",
				ans.err)
		}

		switch strings.ToLower(strings.TrimSpace(ans.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}

	case <-ctx.Done():
		return false, ctx.Err()
	}
}
