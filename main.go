package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/urfave/cli/v2"
)

const (
	Version = "1.2.0"

	// Environment variable for the network name
	SSIDEnvVar = "GENPMK_SSID"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML file with run settings; flags take precedence",
	}
	dictionaryFlag = &cli.StringFlag{
		Name:    "dictionary",
		Aliases: []string{"f"},
		Usage:   "Dictionary file, one passphrase per line (- for STDIN, .gz and .zst are decompressed)",
	}
	databaseFlag = &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Usage:   "Output hash file; an existing file for the same SSID is appended to",
	}
	ssidFlag = &cli.StringFlag{
		Name:    "ssid",
		Aliases: []string{"s"},
		Usage:   "Network SSID",
		EnvVars: []string{SSIDEnvVar},
	}
	workersFlag = &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"n"},
		Usage:   "Passphrases hashed concurrently (default: number of CPUs)",
	}
	iterationsFlag = &cli.IntFlag{
		Name:    "iterations",
		Aliases: []string{"i"},
		Value:   DefaultIterations,
		Usage:   "PBKDF2 iterations",
	}
	progressFlag = &cli.Int64Flag{
		Name:  "progress",
		Value: DefaultProgressInterval,
		Usage: "Report progress every N passphrases (0 disables)",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Serve Prometheus metrics on this address, e.g. :9100",
	}
)

// The count is read back with ctx.Count; a shared Count pointer would
// carry over between runs.
var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Usage:   "Print verbose information (repeat for more)",
}

var errNoDatabase = errors.E(errors.Invalid, "must specify a hash file with -d")

var (
	dumpCommand = &cli.Command{
		Name:      "dump",
		Usage:     "Print the SSID and every passphrase/PMK pair of a hash file",
		ArgsUsage: " ",
		Flags:     []cli.Flag{databaseFlag},
		Action: func(ctx *cli.Context) error {
			path := databasePath(ctx)
			if path == "" {
				return errNoDatabase
			}
			return dump(path, os.Stdout)
		},
	}
	verifyCommand = &cli.Command{
		Name:  "verify",
		Usage: "Recompute every PMK in a hash file and report mismatches",
		Flags: []cli.Flag{databaseFlag, workersFlag, iterationsFlag},
		Action: func(ctx *cli.Context) error {
			path := databasePath(ctx)
			if path == "" {
				return errNoDatabase
			}
			st, err := verify(ctx.Context, path, ctx.Int(workersFlag.Name), ctx.Int(iterationsFlag.Name))
			log.Printf("%d records checked, %d mismatched", st.Records, st.Mismatched)
			return err
		},
	}
)

func init() {
	// -v is verbosity
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:                   "genpmk",
		Usage:                  "WPA-PSK precomputation attack",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			configFlag,
			dictionaryFlag,
			databaseFlag,
			ssidFlag,
			workersFlag,
			iterationsFlag,
			progressFlag,
			metricsAddrFlag,
			verboseFlag,
		},
		Commands: []*cli.Command{dumpCommand, verifyCommand},
		Action: func(ctx *cli.Context) error {
			cfg, err := configFromFlags(ctx)
			if err != nil {
				return err
			}
			return generate(ctx.Context, cfg)
		},
	}
	return app.Run(args)
}

// configFromFlags loads --config, if given, and overlays every flag that
// was set explicitly
func configFromFlags(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = loadConfig(path); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(dictionaryFlag.Name) {
		cfg.Dictionary = ctx.String(dictionaryFlag.Name)
	}
	if ctx.IsSet(databaseFlag.Name) {
		cfg.Database = ctx.String(databaseFlag.Name)
	}
	if ctx.IsSet(ssidFlag.Name) {
		cfg.SSID = ctx.String(ssidFlag.Name)
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(iterationsFlag.Name) {
		cfg.Iterations = ctx.Int(iterationsFlag.Name)
	}
	if ctx.IsSet(progressFlag.Name) {
		cfg.Progress = ctx.Int64(progressFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}
	if n := ctx.Count(verboseFlag.Name); n > 0 {
		cfg.Verbose = n
	}
	return cfg, nil
}

// databasePath returns -d as given to the subcommand or, failing that, to
// genpmk itself.
func databasePath(ctx *cli.Context) string {
	for _, c := range ctx.Lineage() {
		if path := c.String(databaseFlag.Name); path != "" {
			return path
		}
	}
	return ""
}
