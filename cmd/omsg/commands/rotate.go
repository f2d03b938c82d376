package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the signed prekey and republish the bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			spk, err := wire.Identity.RotateSignedPrekey(cmd.Context(), passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Rotated signed prekey (id %s)\n", spk.ID)
			return nil
		},
	}
}
