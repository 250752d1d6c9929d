package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the LinkedIn login used by the browser fetcher",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store LinkedIn credentials in the OS keyring",
	Long: `Store LinkedIn credentials in the OS keyring. The password is read from
LINKEDIN_PASSWORD, or from the first line of standard input.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove stored LinkedIn credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.DeleteCredentials(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed")
		return nil
	},
}

var credentialsUsername string

func init() {
	credentialsSetCmd.Flags().StringVarP(&credentialsUsername, "username", "u", "", "LinkedIn username or email (required)")
	_ = credentialsSetCmd.MarkFlagRequired("username")

	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// readPassword returns LINKEDIN_PASSWORD or the first line of r.
func readPassword(r io.Reader) (string, error) {
	if pw := os.Getenv(config.EnvPassword); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runCredentialsSet(cmd *cobra.Command, _ []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if err := config.SetCredentials(credentialsUsername, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", strings.TrimSpace(credentialsUsername))
	return nil
}
