package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API acknowledgement token",
}

var tokenHashCmd = &cobra.Command{
	Use:   "hash [TOKEN]",
	Short: "Print the bcrypt hash to put in API_TOKEN_HASH",
	Long: `Hash a token for API_TOKEN_HASH. Without an argument a random token is generated
and printed along with its hash. BCRYPT_COST and API_TOKEN_PEPPER are honored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenHash,
}

func init() {
	tokenCmd.AddCommand(tokenHashCmd)
	rootCmd.AddCommand(tokenCmd)
}

// newToken returns 32 random bytes, hex encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func runTokenHash(cmd *cobra.Command, args []string) error {
	tc, err := config.NewTokenConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = newToken()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "token: %s\n", token)
	}

	hash, err := tc.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "API_TOKEN_HASH=%s\n", hash)
	return nil
}
