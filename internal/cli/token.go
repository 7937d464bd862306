package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/notechat/internal/identity"
	"github.com/spf13/cobra"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token signed with SUPABASE_JWT_SECRET",
	Long: `Mint an HS256 access token for local development.

The token carries the same claims as a Supabase access token (sub, email,
role "authenticated"), so a server started with SUPABASE_JWT_SECRET accepts it.

Examples:
  notechat token --user 4a6f...-e1 --email dev@example.com
  notechat token --user dev --ttl 24h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user id (sub claim)")
	tokenCmd.Flags().StringVarP(&tokenEmail, "email", "e", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	token, err := mintToken(tokenUser, tokenEmail, tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

func mintToken(userID, email string, ttl time.Duration) (string, error) {
	if cfg == nil || cfg.Supabase.JWTSecret == "" {
		return "", errors.New("SUPABASE_JWT_SECRET is not set")
	}
	return identity.NewJWTVerifier([]byte(cfg.Supabase.JWTSecret)).Generate(userID, email, ttl)
}
