package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

func recvCmd() *cobra.Command {
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Scan the ledger and decrypt messages addressed to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			cursorPath := filepath.Join(home, "cursor")
			var after uint64
			if !fromStart {
				after = readCursor(cursorPath)
			}

			msgs, cursor, err := wire.Messages.Scan(cmd.Context(), passphrase, after)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				if m.Kind == domain.KindGroup {
					fmt.Printf("[%d] %s (group %s): %s\n", m.Seq, m.From, m.Group, m.Body)
				} else {
					fmt.Printf("[%d] %s: %s\n", m.Seq, m.From, m.Body)
				}
			}
			if len(msgs) == 0 {
				fmt.Println("no new messages")
			}
			return writeCursor(cursorPath, cursor)
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "rescan the whole ledger instead of resuming from the saved cursor")
	return cmd
}

// readCursor loads the last examined sequence number; absent or unreadable
// means scan from the beginning.
func readCursor(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func writeCursor(path string, seq uint64) error {
	return os.WriteFile(path, []byte(strconv.FormatUint(seq, 10)+"\n"), 0o600)
}
