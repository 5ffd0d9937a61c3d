package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/algodash/nftbuy/client"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

const defaultConfigFile = "nftbuy.conf"

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[nftbuy] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "nftbuy"
	app.Usage = "buy assets from an Algorand sale contract"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "configfile",
			Value: defaultConfigFile,
			Usage: "path to the INI configuration file, ignored " +
				"when missing",
		},
		cli.StringFlag{
			Name:  "algodurl",
			Usage: "base URL of the algod node",
		},
		cli.StringFlag{
			Name:   "algodtoken",
			Usage:  "API token of the algod node",
			EnvVar: "NFTBUY_ALGOD_TOKEN",
		},
		cli.Uint64Flag{
			Name:  "appid",
			Usage: "application id of the sale contract",
		},
		cli.StringFlag{
			Name:  "collector",
			Usage: "address receiving the price",
		},
		cli.DurationFlag{
			Name:  "pollinterval",
			Usage: "time between confirmation status polls",
		},
		cli.IntFlag{
			Name:  "maxpollrounds",
			Usage: "status polls before a confirmation times out",
		},
		cli.StringFlag{
			Name:  "debuglevel",
			Usage: "logging level for all subsystems",
		},
	}
	app.Commands = []cli.Command{
		buyCommand,
		statusCommand,
		holdingCommand,
		reconcileCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// loadConfig reads the configuration file and applies the global flags
// over it.
func loadConfig(ctx *cli.Context) (*client.Config, error) {
	path := ctx.GlobalString("configfile")
	if _, err := os.Stat(path); err != nil {
		if ctx.GlobalIsSet("configfile") {
			return nil, err
		}
		path = ""
	}

	cfg, err := client.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if ctx.GlobalIsSet("algodurl") {
		cfg.AlgodURL = ctx.GlobalString("algodurl")
	}
	if ctx.GlobalIsSet("algodtoken") {
		cfg.AlgodToken = ctx.GlobalString("algodtoken")
	}
	if ctx.GlobalIsSet("appid") {
		cfg.AppID = ctx.GlobalUint64("appid")
	}
	if ctx.GlobalIsSet("collector") {
		cfg.Collector = ctx.GlobalString("collector")
	}
	if ctx.GlobalIsSet("pollinterval") {
		cfg.PollInterval = ctx.GlobalDuration("pollinterval")
	}
	if ctx.GlobalIsSet("maxpollrounds") {
		cfg.MaxPollRounds = ctx.GlobalInt("maxpollrounds")
	}
	if ctx.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = ctx.GlobalString("debuglevel")
	}

	return cfg, nil
}

// getClient builds and starts a client. The returned cleanup stops it.
func getClient(cfg *client.Config) (*client.Client, func(), error) {
	if err := client.SetupLoggers(os.Stderr, cfg.DebugLevel); err != nil {
		return nil, nil, err
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(); err != nil {
		return nil, nil, err
	}

	return c, func() { _ = c.Stop() }, nil
}

// readMnemonic prompts for an account mnemonic without echoing it.
func readMnemonic() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no mnemonic configured and stdin is not " +
			"a terminal")
	}

	fmt.Print("Enter account mnemonic: ")
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}

	return strings.Join(strings.Fields(string(raw)), " "), nil
}

func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}

	fmt.Println(string(b))
}
