package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roulette/internal/auth"
	"roulette/internal/models"
)

// NewTokenCommand creates the token command.
func NewTokenCommand() *cobra.Command {
	var secret string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:          "token <identity>",
		Short:        "Mint a bearer token for an identity",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret must match the server's ROULETTE_TOKEN_SECRET")
			}

			tok, err := auth.NewTokenIssuer([]byte(secret), ttl).Issue(models.Identity(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
