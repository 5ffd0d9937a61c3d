package client

import (
	"fmt"
	"io"

	"github.com/algodash/nftbuy/chain/algod"
	"github.com/algodash/nftbuy/inspector"
	"github.com/algodash/nftbuy/purchase"
	"github.com/algodash/nftbuy/txbuilder"
	"github.com/algodash/nftbuy/wallet/local"
	"github.com/btcsuite/btclog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "NBUY"

// log is a logger that is initialized with no output filters. This means the
// package will not perform any logging by default until the caller requests
// it.
var log = btclog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// subsystemLoggers maps every subsystem to the function installing its
// logger.
var subsystemLoggers = map[string]func(btclog.Logger){
	Subsystem:           UseLogger,
	algod.Subsystem:     algod.UseLogger,
	inspector.Subsystem: inspector.UseLogger,
	txbuilder.Subsystem: txbuilder.UseLogger,
	local.Subsystem:     local.UseLogger,
	purchase.Subsystem:  purchase.UseLogger,
}

// SetupLoggers sends the output of every subsystem to w at the given level.
// It must not be called while components are running.
func SetupLoggers(w io.Writer, level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}

	backend := btclog.NewBackend(w)

	subsystems := maps.Keys(subsystemLoggers)
	slices.Sort(subsystems)
	for _, subsystem := range subsystems {
		logger := backend.Logger(subsystem)
		logger.SetLevel(lvl)
		subsystemLoggers[subsystem](logger)
	}

	return nil
}
