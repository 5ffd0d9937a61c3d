package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/algodash/nftbuy/chain"
	"github.com/algodash/nftbuy/chain/algod"
	"github.com/algodash/nftbuy/chain/chaintest"
	"github.com/algodash/nftbuy/purchase"
	"github.com/algodash/nftbuy/wallet/local"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testApp   = 1002541853
	testAsset = 1002590888
)

// newFakeAlgod serves the algod endpoints the client uses from an
// in-memory ledger.
func newFakeAlgod(t *testing.T, ledger *chaintest.Bridge) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, algod.NodeStatus{LastRound: 1000})
	})

	mux.HandleFunc("/v2/transactions/params", func(w http.ResponseWriter, r *http.Request) {
		params, err := ledger.NetworkParams(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, algod.TransactionParams{
			ConsensusVersion: params.ConsensusVersion,
			Fee:              0,
			GenesisHash:      params.GenesisHash,
			GenesisID:        params.GenesisID,
			LastRound:        params.FirstValid,
			MinFee:           params.MinFee,
		})
	})

	mux.HandleFunc("/v2/accounts/", func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimPrefix(r.URL.Path, "/v2/accounts/")
		acct, err := ledger.AccountInfo(r.Context(), address)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		resp := algod.AccountResponse{
			Address:    acct.Address,
			Amount:     acct.Balance,
			MinBalance: acct.MinBalance,
			Round:      acct.Round,
		}
		for asset, units := range acct.Holdings {
			resp.Assets = append(resp.Assets, algod.AssetHolding{
				AssetID: asset,
				Amount:  units,
			})
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/v2/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		txid, err := ledger.SubmitTransactionBytes(r.Context(), raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{
				"message": "TransactionPool.Remember: transaction " +
					"invalid : " + err.Error(),
			})
			return
		}
		writeJSON(w, algod.PostTransactionsResponse{TxID: txid})
	})

	mux.HandleFunc("/v2/transactions/pending/", func(w http.ResponseWriter, r *http.Request) {
		txid := strings.TrimPrefix(r.URL.Path, "/v2/transactions/pending/")
		conf, err := ledger.ConfirmationStatus(r.Context(), txid)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		switch conf.Status {
		case chain.StatusNotFound:
			http.NotFound(w, r)
		case chain.StatusConfirmed:
			writeJSON(w, algod.PendingTransactionResponse{
				ConfirmedRound: conf.ConfirmedRound,
			})
		default:
			writeJSON(w, algod.PendingTransactionResponse{
				PoolError: conf.PoolError,
			})
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// newTestConfig returns a config for one fresh account against url.
func newTestConfig(t *testing.T, url string) (*Config, string) {
	t.Helper()

	acct := crypto.GenerateAccount()
	m, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AlgodURL = url
	cfg.RateLimit = 1000
	cfg.AppID = testApp
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxPollRounds = 20
	cfg.RequestTimeout = 5 * time.Second
	cfg.Mnemonics = []string{m}

	return cfg, acct.Address.String()
}

// TestClient_New tests creating a complete client.
func TestClient_New(t *testing.T) {
	t.Parallel()

	cfg, account := newTestConfig(t, "http://127.0.0.1:1")

	client, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	// Verify all components initialized
	require.NotNil(t, client.algod)
	require.NotNil(t, client.chainBridge)
	require.NotNil(t, client.inspector)
	require.NotNil(t, client.builder)
	require.NotNil(t, client.signer)
	require.NotNil(t, client.controller)
	require.NotNil(t, client.Registry())

	require.Equal(t, []string{account}, client.Accounts())
	def, err := client.DefaultAccount()
	require.NoError(t, err)
	require.Equal(t, account, def)

	// Test start/stop
	require.NoError(t, client.Start())
	require.NoError(t, client.Stop())
}

// TestClient_NewInvalid tests that bad configurations are refused.
func TestClient_NewInvalid(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no url", func(c *Config) { c.AlgodURL = "" },
			ErrAlgodURLRequired},
		{"no app", func(c *Config) { c.AppID = 0 }, ErrAppIDRequired},
		{"bad level", func(c *Config) { c.DebugLevel = "loud" },
			ErrInvalidLogLevel},
		{"bad mnemonic", func(c *Config) { c.Mnemonics = []string{"a b"} },
			nil},
		{"zero poll rounds", func(c *Config) { c.MaxPollRounds = 0 }, nil},
		{"bad collector", func(c *Config) { c.Collector = "x" }, nil},
	}

	for _, tt := range tests {
		cfg, _ := newTestConfig(t, "http://127.0.0.1:1")
		tt.mutate(cfg)

		_, err := New(cfg)
		require.Error(t, err, tt.name)
		if tt.wantErr != nil {
			require.ErrorIs(t, err, tt.wantErr, tt.name)
		}
	}
}

// TestClient_Buy runs a purchase with opt-in against a fake node.
func TestClient_Buy(t *testing.T) {
	t.Parallel()

	ledger := chaintest.NewBridge()
	server := newFakeAlgod(t, ledger)

	cfg, account := newTestConfig(t, server.URL)
	ledger.AddAccount(account, 5_000_000)

	var approvals int
	cfg.Approver = local.ApproverFunc(func(context.Context,
		[]types.Transaction) (bool, error) {

		approvals++
		return true, nil
	})

	client, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	ctx := context.Background()

	before, err := client.Holding(ctx, account, testAsset)
	require.NoError(t, err)
	require.False(t, before.Registered)

	updates, err := client.Buy(ctx, purchase.Request{
		Account: account,
		AssetID: testAsset,
		Price:   250_000,
	})
	require.NoError(t, err)

	var last purchase.Update
	for u := range updates {
		last = u
	}
	require.Equal(t, purchase.StateSuccess, last.State, "%v", last.Err)
	require.Equal(t, 2, approvals)

	after, err := client.Holding(ctx, account, testAsset)
	require.NoError(t, err)
	require.True(t, after.Owned())

	require.Eventually(t, func() bool {
		_, active := client.Controller().Session(account)
		return !active
	}, 5*time.Second, 5*time.Millisecond)

	rec, err := client.Reconcile(ctx, account, testAsset)
	require.NoError(t, err)
	require.Equal(t, purchase.OutcomeOwned, rec.Outcome())

	count, err := testutil.GatherAndCount(client.Registry(),
		"nftbuy_purchases_total", "nftbuy_active_sessions")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	status, err := client.NodeStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), status.LastRound)
}

// TestClient_BuyRejectedByNode tests that a refused broadcast surfaces the
// node's reason.
func TestClient_BuyRejectedByNode(t *testing.T) {
	t.Parallel()

	ledger := chaintest.NewBridge()
	ledger.SubmitErr = func(int, []types.SignedTxn) error {
		return errors.New("overspend")
	}
	server := newFakeAlgod(t, ledger)

	cfg, account := newTestConfig(t, server.URL)
	ledger.AddAccount(account, 5_000_000, testAsset)

	client, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	updates, err := client.Buy(context.Background(), purchase.Request{
		Account: account,
		AssetID: testAsset,
		Price:   250_000,
	})
	require.NoError(t, err)

	var last purchase.Update
	for u := range updates {
		last = u
	}
	require.Equal(t, purchase.StateError, last.State)
	require.ErrorIs(t, last.Err, purchase.ErrSubmissionRejected)
	require.ErrorIs(t, last.Err, chain.ErrRejected)
	require.Contains(t, last.Err.Error(), "overspend")
	require.True(t, last.Err.SafeToRetry())
}

// TestClient_ReadOnly tests a client loaded without mnemonics.
func TestClient_ReadOnly(t *testing.T) {
	t.Parallel()

	ledger := chaintest.NewBridge()
	server := newFakeAlgod(t, ledger)

	cfg, account := newTestConfig(t, server.URL)
	cfg.Mnemonics = nil
	ledger.AddAccount(account, 5_000_000, testAsset)

	client, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	require.Empty(t, client.Accounts())
	_, err = client.DefaultAccount()
	require.ErrorIs(t, err, ErrNoAccounts)

	snap, err := client.Holding(context.Background(), account, testAsset)
	require.NoError(t, err)
	require.True(t, snap.Registered)
	require.False(t, snap.Owned())

	_, err = client.Buy(context.Background(), purchase.Request{
		Account: account,
		AssetID: testAsset,
		Price:   1,
	})
	require.ErrorIs(t, err, ErrNoAccounts)
}

// TestClient_BuyUnknownAccount tests that only loaded accounts can buy.
func TestClient_BuyUnknownAccount(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t, "http://127.0.0.1:1")
	client, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	other := crypto.GenerateAccount()
	_, err = client.Buy(context.Background(), purchase.Request{
		Account: other.Address.String(),
		AssetID: testAsset,
		Price:   1,
	})
	require.ErrorIs(t, err, purchase.ErrInvalidParameters)
}

// TestLoadConfig tests reading an INI file over the defaults.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().AlgodURL, cfg.AlgodURL)

	path := filepath.Join(t.TempDir(), "nftbuy.conf")
	err = os.WriteFile(path, []byte(`
[Application Options]
algodurl=http://localhost:4001
algodtoken=aaaa
appid=42
pollinterval=500ms
maxpollrounds=30
debuglevel=debug
mnemonic=first words
mnemonic=second words
`), 0600)
	require.NoError(t, err)

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:4001", cfg.AlgodURL)
	require.Equal(t, "aaaa", cfg.AlgodToken)
	require.Equal(t, uint64(42), cfg.AppID)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 30, cfg.MaxPollRounds)
	require.Equal(t, "debug", cfg.DebugLevel)
	require.Equal(t, []string{"first words", "second words"},
		cfg.Mnemonics)

	// Untouched options keep their defaults.
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.NoError(t, cfg.Validate())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}

// TestSetupLoggers tests that every subsystem logs through one backend. It
// replaces package loggers and therefore does not run in parallel.
func TestSetupLoggers(t *testing.T) {
	require.ErrorIs(t, SetupLoggers(io.Discard, "loud"), ErrInvalidLogLevel)

	var buf bytes.Buffer
	require.NoError(t, SetupLoggers(&buf, "debug"))
	log.Debugf("hello %d", 1)
	require.Contains(t, buf.String(), "[DBG] NBUY: hello 1")

	require.Len(t, subsystemLoggers, 6)

	require.NoError(t, SetupLoggers(io.Discard, "off"))
}
