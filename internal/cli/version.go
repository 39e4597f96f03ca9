package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the release tag; overridden through ldflags on release
// builds.
var Version = "2.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show compresskit and external tool versions",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "compresskit %s\n", Version)
	versions := a.comp.ToolVersions(cmd.Context())
	for _, name := range sortedKeys(versions) {
		fmt.Fprintf(w, "  %-8s %s\n", name, versions[name])
	}
	return nil
}
