package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/algodash/nftbuy/wallet"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T) (crypto.Account, string) {
	t.Helper()

	acct := crypto.GenerateAccount()
	m, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	require.NoError(t, err)

	return acct, m
}

func testPayment(t *testing.T, from crypto.Account) types.Transaction {
	t.Helper()

	txn, err := transaction.MakePaymentTxn(
		from.Address.String(), crypto.GenerateAccount().Address.String(),
		1000, nil, "", types.SuggestedParams{
			Fee:             1000,
			GenesisID:       "testnet-v1.0",
			GenesisHash:     bytes.Repeat([]byte{0x48}, 32),
			FirstRoundValid: 10,
			LastRoundValid:  1010,
			FlatFee:         true,
			MinFee:          1000,
		},
	)
	require.NoError(t, err)

	return txn
}

// TestSigner_SignAll tests signing every transaction in order.
func TestSigner_SignAll(t *testing.T) {
	t.Parallel()

	acct, m := newTestAccount(t)
	signer, err := New(DefaultConfig(m))
	require.NoError(t, err)
	require.Equal(t, []string{acct.Address.String()}, signer.Addresses())

	txns := []types.Transaction{testPayment(t, acct), testPayment(t, acct)}

	signed, err := signer.SignTransactions(context.Background(), txns, nil)
	require.NoError(t, err)
	require.Len(t, signed, 2)

	for i, blob := range signed {
		var stx types.SignedTxn
		require.NoError(t, msgpack.Decode(blob, &stx))
		require.Equal(t, crypto.GetTxID(txns[i]), crypto.GetTxID(stx.Txn))
		require.NotEqual(t, types.Signature{}, stx.Sig)
	}
}

// TestSigner_Indices tests that only requested positions are signed.
func TestSigner_Indices(t *testing.T) {
	t.Parallel()

	acct, m := newTestAccount(t)
	foreign := crypto.GenerateAccount()
	signer, err := New(DefaultConfig(m))
	require.NoError(t, err)

	txns := []types.Transaction{
		testPayment(t, foreign), testPayment(t, acct),
	}

	signed, err := signer.SignTransactions(
		context.Background(), txns, []int{1},
	)
	require.NoError(t, err)
	require.Nil(t, signed[0])
	require.NotEmpty(t, signed[1])

	_, err = signer.SignTransactions(context.Background(), txns, []int{2})
	require.Error(t, err)
}

// TestSigner_UnknownSender tests that nothing is signed or asked for when a
// sender is missing.
func TestSigner_UnknownSender(t *testing.T) {
	t.Parallel()

	acct, m := newTestAccount(t)

	asked := false
	cfg := DefaultConfig(m)
	cfg.Approver = ApproverFunc(func(context.Context,
		[]types.Transaction) (bool, error) {

		asked = true
		return true, nil
	})
	signer, err := New(cfg)
	require.NoError(t, err)

	txns := []types.Transaction{
		testPayment(t, acct), testPayment(t, crypto.GenerateAccount()),
	}

	signed, err := signer.SignTransactions(context.Background(), txns, nil)
	require.ErrorIs(t, err, wallet.ErrUnavailable)
	require.ErrorIs(t, err, ErrUnknownSender)
	require.Nil(t, signed)
	require.False(t, asked)
}

// TestSigner_Approval tests the approval outcomes.
func TestSigner_Approval(t *testing.T) {
	t.Parallel()

	acct, m := newTestAccount(t)

	tests := []struct {
		name     string
		approver Approver
		cancel   bool
		wantErr  error
	}{
		{
			name: "declined",
			approver: ApproverFunc(func(context.Context,
				[]types.Transaction) (bool, error) {

				return false, nil
			}),
			wantErr: wallet.ErrRejected,
		},
		{
			name: "approver failure",
			approver: ApproverFunc(func(context.Context,
				[]types.Transaction) (bool, error) {

				return false, errors.New("device gone")
			}),
			wantErr: wallet.ErrUnavailable,
		},
		{
			name: "cancelled while waiting",
			approver: ApproverFunc(func(ctx context.Context,
				_ []types.Transaction) (bool, error) {

				<-ctx.Done()
				return false, ctx.Err()
			}),
			cancel:  true,
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(m)
			cfg.Approver = tt.approver
			signer, err := New(cfg)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			signed, err := signer.SignTransactions(
				ctx, []types.Transaction{testPayment(t, acct)}, nil,
			)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, signed)
		})
	}
}

// TestTerminalApprover_NoTerminal tests that a non-terminal input cannot
// approve.
func TestTerminalApprover_NoTerminal(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	a := &TerminalApprover{In: f, Out: &out}

	ok, err := a.Approve(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoTerminal)
	require.False(t, ok)
}

// TestConfig_Validation tests configuration validation.
func TestConfig_Validation(t *testing.T) {
	t.Parallel()

	_, m := newTestAccount(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"valid", DefaultConfig(m), nil},
		{"no mnemonics", DefaultConfig(), ErrNoKeys},
		{"no approver", &Config{Mnemonics: []string{m}},
			ErrApproverRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}

	_, err := New(DefaultConfig("not a mnemonic"))
	require.Error(t, err)
}
