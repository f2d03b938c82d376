package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your key bundle to the shared registry",
		Long: `Publish your key bundle to the shared registry.

Run it again after receiving messages to withdraw consumed one-time prekeys
from the published bundle, and after rotating the signed prekey.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			bundle, err := wire.Identity.Publish(cmd.Context(), passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Published bundle for %s (%d one-time prekeys)\n",
				bundle.Peer, len(bundle.OneTimePrekeys))
			return nil
		},
	}
}
