package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/syncvault/internal/config"
	"github.com/TheMichaelB/syncvault/internal/crypto"
	"github.com/TheMichaelB/syncvault/internal/device"
	"github.com/TheMichaelB/syncvault/internal/events"
	"github.com/TheMichaelB/syncvault/internal/keystore"
	"github.com/TheMichaelB/syncvault/internal/vault"
)

var (
	cfgFile    string
	jsonOutput bool
	logLevel   string

	cfg    *config.Config
	logger *events.Logger
)

var rootCmd = &cobra.Command{
	Use:   "syncvault",
	Short: "Protect the sync passphrase and compare local and server file sets",
	Long: `syncvault keeps the sync passphrase encrypted at rest under a key bound
to this device, and classifies differences between a local directory and a
server file listing before reconciliation.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Config file (default: ./syncvault.json or ~/.config/syncvault/config.json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !jsonOutput {
			printError("%v", err)
		} else {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		}
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	ctx := events.WithLogger(cmd.Context(), logger)
	cmd.SetContext(events.WithOperation(ctx, cmd.CommandPath()))
	return nil
}

// openVault builds a vault over the configured stores. The returned close
// function releases both stores.
func openVault() (*vault.Vault, func(), error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	durable, err := keystore.Open(&cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}

	legacy, err := keystore.OpenLegacy(&cfg.Storage, logger)
	if err != nil {
		durable.Close()
		return nil, nil, fmt.Errorf("open legacy store: %w", err)
	}

	opts := []vault.Option{
		vault.WithIterations(cfg.Crypto.Iterations),
		vault.WithLogger(logger),
	}
	if cfg.Crypto.KDF == config.KDFScrypt {
		opts = append(opts, vault.WithProvider(crypto.NewProvider(crypto.WithKDF(crypto.ScryptParams()))))
	}

	v := vault.New(durable, legacy, device.NewHostProvider(), opts...)

	return v, func() {
		_ = durable.Close()
		_ = legacy.Close()
	}, nil
}

// Output helpers

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(format string, args ...interface{}) {
	successColor.Fprint(os.Stdout, "✓ ")
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprint(os.Stderr, "✗ ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarn(format string, args ...interface{}) {
	warnColor.Fprint(os.Stderr, "! ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
