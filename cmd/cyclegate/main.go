package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "cyclegate"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Per-cycle trade candidate admission engine",
		Version: version,
		Long: `cyclegate decides which trade candidates become open positions.

Each cycle it scores candidate snapshots through the regime weight
table and gate stack, then admits, displaces, or blocks them against
capacity, cooldown, and expectancy constraints. Every rejection gets a
stable reason code and an audit record.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (trace|debug|info|warn|error)")
	rootCmd.SetGlobalNormalizationFunc(normalizeFlags)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCycleCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("%s %s\n", appName, version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// normalizeFlags lets underscores stand in for dashes so flag names
// match the YAML keys.
func normalizeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// setupLogging picks console output on a TTY and JSON otherwise.
func setupLogging(cmd *cobra.Command) error {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	if levelName == "" {
		return nil
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}
