package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/syncvault/internal/config"
	"github.com/TheMichaelB/syncvault/internal/keystore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Credential store maintenance",
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate <to-backend>",
	Short: "Copy stored entries into another backend",
	Long: `Migrate copies the encrypted passphrase and device salt from the
configured backend to another one. Update storage.backend afterwards.
The source is left untouched.`,
	Example: `  syncvault store migrate sqlite`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStoreMigrate,
}

var configExampleCmd = &cobra.Command{
	Use:   "config-example <path>",
	Short: "Write an example configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveExample(args[0]); err != nil {
			return err
		}
		printSuccess("Wrote %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd, configExampleCmd)
	storeCmd.AddCommand(storeMigrateCmd)
}

func runStoreMigrate(cmd *cobra.Command, args []string) error {
	target := args[0]
	if target == cfg.Storage.Backend {
		return fmt.Errorf("backend %s is already in use", target)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	src, err := keystore.Open(&cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open source store: %w", err)
	}
	defer src.Close()

	dstCfg := cfg.Storage
	dstCfg.Backend = target
	dst, err := keystore.Open(&dstCfg, logger)
	if err != nil {
		return fmt.Errorf("open target store: %w", err)
	}
	defer dst.Close()

	copied, err := keystore.Migrate(cmd.Context(), src, dst)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "copied": copied})
		return nil
	}
	printSuccess("Copied %d entries from %s to %s", len(copied), cfg.Storage.Backend, target)
	printInfo("Set storage.backend to %q to use it", target)
	return nil
}
