package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dawnkeeper/dawnkeeper/internal/config"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/roster"
	"github.com/dawnkeeper/dawnkeeper/internal/tokenstore"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration, roster and credential store",
	Long: `Check that the configuration parses, the roster has usable
entries and the credential store opens, without contacting any
upstream service.`,
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fmt.Printf("✓ config %s\n", globalFlags.Config)

	logger := logging.NewLogger(logging.WithOutput(os.Stderr), logging.WithLevel(logging.LevelWarn))

	rosterPath := cfg.Roster.Path
	if globalFlags.Roster != "" {
		rosterPath = globalFlags.Roster
	}
	creds, err := roster.Load(rosterPath, logger)
	if err != nil {
		return fmt.Errorf("roster: %w", err)
	}
	fmt.Printf("✓ roster %s (%d accounts)\n", rosterPath, len(creds))

	if globalFlags.DB != "" {
		cfg.Store.Path = globalFlags.DB
	}
	if cfg.Store.Enabled {
		store, err := tokenstore.Open(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		n, err := store.Count()
		store.Close()
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		fmt.Printf("✓ store %s (%d captures)\n", cfg.Store.Path, n)
	}

	return nil
}
