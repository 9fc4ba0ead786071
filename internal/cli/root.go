// Package cli implements drawctl, the offline companion of the draw server.
// It lets an organizer prepare a commitment and lets anyone audit a draw.
package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"roulette/internal/hashing"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Hash string
}

func (o *RootOptions) hasher() (hashing.Hasher, error) {
	return hashing.ByName(o.Hash)
}

// NewRootCommand creates the root command for drawctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "drawctl",
		Short: "drawctl - commit-reveal draw tooling",
		Long:  "Prepare commitments, audit revealed draws and mint bearer tokens for a roulette server.",
		// main prints the error once
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.hasher()
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Hash, "hash", "sha256", "commitment hash (sha256|keccak256|sha3-256)")

	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewTokenCommand())

	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
