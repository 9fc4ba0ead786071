package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"roulette/internal/commitment"
	"roulette/internal/models"
)

// CommitOutput is what an organizer keeps private (secret, salt) and what
// it publishes (commitment).
type CommitOutput struct {
	Hash       string        `json:"hash"`
	Secret     uint64        `json:"secret,string"`
	Salt       models.Salt   `json:"salt"`
	Commitment models.Digest `json:"commitment"`
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	var secret uint64
	var salt string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Draw a secret and salt and print their commitment",
		Long: `Draw a fresh nonzero secret and a random salt, then print the commitment
to submit when creating a session. Pass --secret and --salt to recompute a
commitment for values you already hold.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := rootOpts.hasher()
			if err != nil {
				return err
			}

			out := CommitOutput{Hash: h.Name()}
			if out.Secret, out.Salt, err = commitment.NewSecret(nil); err != nil {
				return err
			}
			if secret != 0 {
				out.Secret = secret
			}
			if salt != "" {
				if out.Salt, err = models.ParseSalt(salt); err != nil {
					return errors.Wrap(err, "invalid --salt")
				}
			}

			out.Commitment = commitment.Compute(h, out.Secret, out.Salt)
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Uint64Var(&secret, "secret", 0, "use this secret instead of a random one")
	cmd.Flags().StringVar(&salt, "salt", "", "use this hex salt instead of a random one")

	return cmd
}
