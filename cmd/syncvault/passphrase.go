package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/syncvault/internal/models"
)

var passphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Manage the stored sync passphrase",
}

var passphraseSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Encrypt and store the sync passphrase",
	Example: `  syncvault passphrase set
  echo -n "$PASS" | syncvault passphrase set --stdin`,
	Args: cobra.NoArgs,
	RunE: runPassphraseSet,
}

var passphraseGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the stored sync passphrase",
	Long: `Get decrypts the stored passphrase. A passphrase left in the legacy
plaintext location is migrated to encrypted storage on first read.
The value is only printed with --reveal.`,
	Args: cobra.NoArgs,
	RunE: runPassphraseGet,
}

var passphraseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a passphrase is stored",
	Args:  cobra.NoArgs,
	RunE:  runPassphraseStatus,
}

var passphraseClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the passphrase from all locations",
	Args:  cobra.NoArgs,
	RunE:  runPassphraseClear,
}

var passphraseForgetCmd = &cobra.Command{
	Use:   "forget-device-key",
	Short: "Drop the cached device key and re-derive it",
	Args:  cobra.NoArgs,
	RunE:  runPassphraseForget,
}

var (
	passphraseStdin  bool
	passphraseReveal bool
)

func init() {
	rootCmd.AddCommand(passphraseCmd)
	passphraseCmd.AddCommand(passphraseSetCmd, passphraseGetCmd, passphraseStatusCmd,
		passphraseClearCmd, passphraseForgetCmd)

	passphraseSetCmd.Flags().BoolVar(&passphraseStdin, "stdin", false,
		"Read the passphrase from standard input")
	passphraseGetCmd.Flags().BoolVar(&passphraseReveal, "reveal", false,
		"Print the passphrase")
}

func runPassphraseSet(cmd *cobra.Command, args []string) error {
	var (
		password string
		err      error
	)
	if passphraseStdin {
		password, err = readLine(os.Stdin)
	} else {
		password, err = promptPassword("Sync passphrase: ")
	}
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}

	v, closeStores, err := openVault()
	if err != nil {
		return err
	}
	defer closeStores()

	if err := v.StorePassword(cmd.Context(), password); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
	} else {
		printSuccess("Passphrase stored")
	}
	return nil
}

func runPassphraseGet(cmd *cobra.Command, args []string) error {
	v, closeStores, err := openVault()
	if err != nil {
		return err
	}
	defer closeStores()

	password, err := v.GetPassword(cmd.Context())
	result := models.FromPair(password, err)

	// A failed migration still yields the passphrase
	if models.KindOf(err) == models.KindMigration {
		printWarn("Passphrase read from legacy location but could not be migrated: %v", err)
		result = models.Ok(password)
	}

	shown := models.Map(result, func(pw string) string {
		if passphraseReveal {
			return pw
		}
		return strings.Repeat("*", len([]rune(pw)))
	})

	if jsonOutput {
		printJSON(resultJSON(shown))
		return nil
	}

	value, err := shown.Unpack()
	if err != nil {
		if models.IsRecoverable(err) {
			printWarn("Run 'syncvault passphrase set' to store the passphrase again")
		}
		return err
	}
	fmt.Println(value)
	return nil
}

func runPassphraseStatus(cmd *cobra.Command, args []string) error {
	v, closeStores, err := openVault()
	if err != nil {
		return err
	}
	defer closeStores()

	stored, err := v.HasPassword(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"stored":      stored,
			"backend":     cfg.Storage.Backend,
			"fingerprint": v.Fingerprint().Short(),
		})
		return nil
	}

	printInfo("Backend:     %s", cfg.Storage.Backend)
	printInfo("Device:      %s", v.Fingerprint().Short())
	if stored {
		printSuccess("Passphrase stored")
	} else {
		printWarn("No passphrase stored")
	}
	return nil
}

func runPassphraseClear(cmd *cobra.Command, args []string) error {
	v, closeStores, err := openVault()
	if err != nil {
		return err
	}
	defer closeStores()

	if err := v.ClearPassword(cmd.Context()); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
	} else {
		printSuccess("Passphrase cleared")
	}
	return nil
}

func runPassphraseForget(cmd *cobra.Command, args []string) error {
	v, closeStores, err := openVault()
	if err != nil {
		return err
	}
	defer closeStores()

	v.ClearDeviceKeyCache()

	// Re-derive to confirm the stored passphrase is still readable here
	stored, err := v.HasPassword(cmd.Context())
	ok := models.AndThen(models.FromPair(stored, err), func(stored bool) models.Result[bool] {
		if !stored {
			return models.Ok(false)
		}
		_, err := v.GetPassword(cmd.Context())
		return models.FromPair(err == nil, err)
	})

	readable := models.UnwrapOr(ok, false)
	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "readable": readable})
		return nil
	}

	printSuccess("Device key cache cleared")
	if !readable {
		if err := ok.Error(); err != nil {
			printWarn("Stored passphrase is not readable on this device: %v", err)
		}
	}
	return nil
}

func resultJSON(r models.Result[string]) map[string]interface{} {
	if v, ok := r.Value(); ok {
		return map[string]interface{}{"success": true, "passphrase": v}
	}
	out := map[string]interface{}{
		"success": false,
		"error":   r.Error().Error(),
	}
	if code := models.KindOf(r.Error()).Code(); code != "" {
		out["code"] = code
	}
	return out
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", err
	}

	return string(password), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
