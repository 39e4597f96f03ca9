package cli

import (
	"fmt"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/license"
	"github.com/spf13/cobra"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "License inspection",
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show license state and feature availability",
	Args:  cobra.NoArgs,
	RunE:  runLicenseStatus,
}

func init() {
	licenseCmd.AddCommand(licenseStatusCmd)
	rootCmd.AddCommand(licenseCmd)
}

// runLicenseStatus reports, it does not judge: an absent or broken
// license prints its state and exits zero.
func runLicenseStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	lic, status := a.validator.Validate()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "License: %s (%s)\n", status, a.validator.Dir())
	if lic != nil {
		fmt.Fprintf(w, "  Customer: %s <%s>\n", lic.Customer, lic.Email)
		fmt.Fprintf(w, "  Type:     %s\n", lic.Type)
		fmt.Fprintf(w, "  ID:       %s\n", lic.ID)
		if !lic.Issued.IsZero() {
			fmt.Fprintf(w, "  Issued:   %s\n", lic.Issued.Format("2006-01-02"))
		}
		if !lic.Expires.IsZero() {
			fmt.Fprintf(w, "  Expires:  %s\n", lic.Expires.Format("2006-01-02"))
		}
	}
	fmt.Fprintln(w, "Features:")
	for _, feature := range []string{
		license.FeatureAdvancedCompression,
		license.FeatureBatchProcessing,
		license.FeatureCustomProfiles,
		license.FeaturePrioritySupport,
	} {
		fmt.Fprintf(w, "  %-22s %s\n", feature, yesNo(a.validator.FeatureEnabled(feature)))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
