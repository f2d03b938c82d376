package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/keohanoi/onchain-messaging-sub000/internal/app"
)

var (
	configPath   string
	home         string
	passphrase   string
	registryPath string
	ledgerPath   string
	logLevel     string

	wire   *app.Wire
	logger zerolog.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:   "omsg",
		Short: "Stealth-addressed end-to-end encrypted messaging over a shared ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if configPath == "" {
				configPath = filepath.Join(home, "config.toml")
			}

			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// Flags beat the config file.
			cfg.Home = home
			if registryPath != "" {
				cfg.Registry = registryPath
			}
			if ledgerPath != "" {
				cfg.Ledger = ledgerPath
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			cfg.ApplyDefaults()

			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()

			wire, err = app.NewWire(cfg, passphrase, logger)
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.omsg)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting keys and sessions")
	root.PersistentFlags().StringVar(&registryPath, "registry", "", "key-bundle directory file (default <home>/registry.json)")
	root.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "broadcast ledger file (default <home>/ledger.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "zerolog level (default info)")

	root.AddCommand(initCmd(), fingerprintCmd(), registerCmd(), sendCmd(), recvCmd(), rotateCmd())
	return root.Execute()
}

// requirePassphrase is the shared guard for commands that touch the keystore.
func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
