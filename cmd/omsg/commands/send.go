package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

func sendCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt a message for a peer and broadcast it on the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			kind := domain.KindDirect
			if group != "" {
				kind = domain.KindGroup
			}
			seq, err := wire.Messages.Send(cmd.Context(), passphrase,
				domain.PeerID(args[0]), kind, domain.GroupID(group), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("sent (seq %d)\n", seq)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "send as a group message with this group id")
	return cmd
}
