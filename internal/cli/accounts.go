package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dawnkeeper/dawnkeeper/internal/config"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/tokenstore"
)

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List captured account credentials",
	Long: `List the most recent captured credentials per account from the
credential store. Tokens and wallet secrets are shown redacted.

Example:
  dawnkeeper accounts
  dawnkeeper accounts --history alice@example.com`,
	RunE: runAccounts,
}

var accountsFlags struct {
	History string
}

func init() {
	accountsCmd.Flags().StringVar(&accountsFlags.History, "history", "", "Show all captures for one username")

	RootCmd.AddCommand(accountsCmd)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if globalFlags.DB != "" {
		cfg.Store.Path = globalFlags.DB
	}

	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	store, err := tokenstore.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer store.Close()

	var records []tokenstore.Record
	if accountsFlags.History != "" {
		records, err = store.History(accountsFlags.History)
	} else {
		records, err = store.Latest()
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No captured credentials.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tUSER ID\tCAPTURED\tTOKEN")
	for _, rec := range records {
		redacted := rec.Bundle.Redacted()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.Username,
			rec.UserID,
			rec.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			redacted.Token,
		)
	}
	return w.Flush()
}
