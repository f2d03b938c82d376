package main

import (
	"os"

	"github.com/keohanoi/onchain-messaging-sub000/cmd/omsg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
