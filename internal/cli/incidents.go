package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/audit"
	"github.com/spf13/cobra"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Show recorded security incidents",
	Args:  cobra.NoArgs,
	RunE:  runIncidents,
}

func init() {
	incidentsCmd.Flags().IntP("limit", "n", 20, "Most recent incidents to show (0 = all)")
	rootCmd.AddCommand(incidentsCmd)
}

func runIncidents(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	incidents, listErr := audit.List(a.reporter.Dir())
	if listErr != nil {
		// Damaged records are worth a loud note: the ledger is
		// append-only, so nothing legitimate rewrites entries.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: unreadable ledger entries: %v\n", listErr)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(incidents) > limit {
		incidents = incidents[len(incidents)-limit:]
	}

	w := cmd.OutOrStdout()
	if len(incidents) == 0 {
		fmt.Fprintln(w, "no incidents recorded")
		return nil
	}
	for _, inc := range incidents {
		fmt.Fprintf(w, "%s  %-8s %-26s %s\n",
			inc.Timestamp.Format(time.RFC3339), inc.Severity, inc.Type, inc.Operation)
		for _, k := range sortedKeys(inc.Details) {
			fmt.Fprintf(w, "    %s=%s\n", k, inc.Details[k])
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
