package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"reelscout/pkg/auth"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API tokens for the scraping provider and transcription endpoint",
	Long: `Manage stored API tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

A token set in the config file or REELSCOUT_*_TOKEN wins over a stored one.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [provider|transcription]",
	Short: "Store a token securely",
	Example: `  reelscout auth login
  reelscout auth login transcription`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [provider|transcription]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which tokens are available",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func serviceArg(args []string) (auth.Service, error) {
	if len(args) == 0 {
		return auth.ServiceProvider, nil
	}
	svc, err := auth.ParseService(args[0])
	if err != nil {
		return "", errs.Validation(err.Error())
	}
	return svc, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	service, err := serviceArg(args)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	auth.ShowTokenGuide(ui.Output, service)

	reader := bufio.NewReader(os.Stdin)
	if existing, _ := manager.Retrieve(service); existing != nil {
		fmt.Fprintf(ui.Output, "A %s token is already stored (%s). Replace it? (y/N): ", service, auth.Mask(existing.Token))
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprintf(ui.Output, "%s token: ", service)
	token, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errs.Validation("token is required")
	}

	if err := manager.Store(&auth.Credential{Service: service, Token: token}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %s token %s", service, auth.Mask(token)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	service, err := serviceArg(args)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(service); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning(fmt.Sprintf("No stored %s token", service))
			return nil
		}
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed %s token", service))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	creds, err := manager.List()
	if err != nil {
		return err
	}

	stored := make(map[auth.Service]*auth.Credential, len(creds))
	for _, c := range creds {
		stored[c.Service] = c
	}

	rows := make([][]string, 0, len(auth.Services))
	for _, svc := range auth.Services {
		token, updated := "-", "-"
		if c, ok := stored[svc]; ok {
			token = auth.Mask(c.Token)
			updated = c.LastModified.Local().Format("2006-01-02 15:04")
		}
		env := "unset"
		if os.Getenv(auth.EnvVars[svc]) != "" {
			env = "set"
		}
		rows = append(rows, []string{string(svc), token, updated, auth.EnvVars[svc] + " " + env})
	}
	ui.PrintTable([]string{"service", "token", "updated", "environment"}, rows)
	return nil
}

// readSecret reads without echo on a terminal and falls back to a plain line
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
