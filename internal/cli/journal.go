package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the request journal",
}

var journalShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show the recorded response for a request",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

func init() {
	journalCmd.AddCommand(journalShowCmd)
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := journal.Open(cmd.Context(), cfg.Journal)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("no journal configured, set --journal-bucket or GGPROV_JOURNAL_BUCKET")
	}
	return showEntry(cmd, j, args[0])
}

func showEntry(cmd *cobra.Command, j *journal.Journal, requestID string) error {
	entry, found, err := j.Lookup(cmd.Context(), requestID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no journal entry for request %s", requestID)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}
