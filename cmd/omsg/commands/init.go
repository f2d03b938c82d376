package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/services/identity"
)

func initCmd() *cobra.Command {
	var oneTime int
	var pq bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Identity.Generate(passphrase, identity.Options{
				OneTimeCount: oneTime,
				EnablePQ:     pq,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nPeer ID:     %s\nFingerprint: %s\n",
				id.ID, crypto.Fingerprint(id.Key.Pub))
			return nil
		},
	}
	cmd.Flags().IntVar(&oneTime, "one-time-keys", 10, "number of one-time prekeys to generate")
	cmd.Flags().BoolVar(&pq, "pq", false, "add a Kyber KEM key for hybrid key agreement")
	return cmd
}
