package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/algodash/nftbuy/wallet/local"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrAlgodURLRequired is returned when no node address is configured.
	ErrAlgodURLRequired = errors.New("algod URL is required")

	// ErrAppIDRequired is returned when no sale application is configured.
	ErrAppIDRequired = errors.New("application id is required")

	// ErrNoAccounts is returned when signing is needed but no mnemonic
	// was loaded.
	ErrNoAccounts = errors.New("no accounts loaded")

	// ErrInvalidLogLevel is returned for an unknown debug level.
	ErrInvalidLogLevel = errors.New("invalid debug level")
)

// Config holds client configuration. Tagged fields can be set from an INI
// file or command line flags.
type Config struct {
	AlgodURL   string `long:"algodurl" description:"Base URL of the algod node"`
	AlgodToken string `long:"algodtoken" description:"API token of the algod node"`
	RateLimit  int    `long:"ratelimit" description:"Maximum requests per second sent to the node"`

	AppID     uint64 `long:"appid" description:"Application id of the sale contract"`
	Collector string `long:"collector" description:"Address receiving the price, defaults to the application escrow"`

	PollInterval   time.Duration `long:"pollinterval" description:"Time between confirmation status polls"`
	MaxPollRounds  int           `long:"maxpollrounds" description:"Status polls before a confirmation times out"`
	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout of a single node request"`

	Note string `long:"note" description:"Note attached to every transaction"`

	Mnemonics []string `long:"mnemonic" description:"25-word account mnemonic, may be repeated. Prefer the interactive prompt"`

	DebugLevel    string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off}"`
	MetricsListen string `long:"metricslisten" description:"Address to serve Prometheus metrics on, empty disables"`

	// Approver confirms every signature. Defaults to approving all.
	Approver local.Approver `no-flag:"true"`

	// Registry receives the purchase metrics. A new one is created when
	// nil.
	Registry *prometheus.Registry `no-flag:"true"`
}

// DefaultConfig returns a default configuration for the public testnet.
func DefaultConfig() *Config {
	return &Config{
		AlgodURL:       "https://testnet-api.algonode.cloud",
		RateLimit:      10,
		PollInterval:   2 * time.Second,
		MaxPollRounds:  15,
		RequestTimeout: 30 * time.Second,
		DebugLevel:     "info",
		Approver:       local.AutoApprove,
	}
}

// Validate validates the configuration. Component settings are checked by
// the components themselves in New.
func (c *Config) Validate() error {
	if c.AlgodURL == "" {
		return ErrAlgodURLRequired
	}
	if c.AppID == 0 {
		return ErrAppIDRequired
	}
	if _, ok := btclog.LevelFromString(c.DebugLevel); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.DebugLevel)
	}

	return nil
}

// LoadConfig returns the default configuration overridden by the INI file
// at path. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	parser := flags.NewParser(cfg, flags.IgnoreUnknown)
	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path,
			err)
	}

	return cfg, nil
}
