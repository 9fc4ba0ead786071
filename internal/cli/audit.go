package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"roulette/internal/commitment"
	"roulette/internal/models"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var secret uint64
	var salt, digest string

	cmd := &cobra.Command{
		Use:   "audit <participant>...",
		Short: "Recompute a revealed draw",
		Long: `Check that a revealed secret and salt open a commitment and recompute the
winner from the frozen participant list, given in registration order.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.hasher()
			if err != nil {
				return err
			}
			c, err := models.ParseDigest(digest)
			if err != nil {
				return errors.Wrap(err, "invalid --commitment")
			}
			s, err := models.ParseSalt(salt)
			if err != nil {
				return errors.Wrap(err, "invalid --salt")
			}

			participants := make([]models.Identity, len(args))
			for i, a := range args {
				participants[i] = models.Identity(a)
			}

			rec, err := commitment.Audit(h, c, secret, s, participants)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
				return err
			}
			if !rec.Verified {
				return commitment.ErrMismatch
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&secret, "secret", 0, "revealed secret")
	cmd.Flags().StringVar(&salt, "salt", "", "revealed hex salt")
	cmd.Flags().StringVar(&digest, "commitment", "", "published hex commitment")
	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("salt")
	_ = cmd.MarkFlagRequired("commitment")

	return cmd
}
