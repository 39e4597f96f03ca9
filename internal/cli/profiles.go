package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List compression profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	for _, p := range a.comp.Profiles() {
		dpi := "preset default"
		if p.DPI > 0 {
			dpi = fmt.Sprintf("%d dpi", p.DPI)
		}
		marker := ""
		if p.Custom {
			marker = "  (custom)"
		}
		fmt.Fprintf(w, "%-12s %-10s %s%s\n", p.Name, p.GSPreset, dpi, marker)
	}
	return nil
}
