// Package cli wires the trust components into the compresskit command
// tree and owns process-level concerns: configuration loading, the log
// sink, signal cleanup, and exit codes.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/command"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes. Security denials are distinguishable from ordinary
// failures so wrapping scripts can alert on them.
const (
	exitOK       = 0
	exitError    = 1
	exitDenied   = 2
	exitSignaled = 130
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "compresskit",
	Short: "PDF compression with a hardened pipeline",
	Long: `compresskit shrinks PDF files through ghostscript and qpdf behind a
trust layer: paths are validated before use, tools run under a fixed
allowlist, artifacts move atomically, and every denial is recorded in
an incident ledger.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: compresskit.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringP("quality", "q", config.ProfileEbook, "Compression profile")
	rootCmd.PersistentFlags().String("output-dir", ".", "Directory for compressed output")
	rootCmd.PersistentFlags().String("license-dir", "", "Directory holding license.key and license.sig")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	viper.BindPFlag("quality", rootCmd.PersistentFlags().Lookup("quality"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("license.dir", rootCmd.PersistentFlags().Lookup("license-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func init() {
	config.SetViperDefaults()

	viper.SetConfigName("compresskit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.compresskit")
	viper.AddConfigPath("$HOME")

	viper.SetEnvPrefix("COMPRESSKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

// Execute runs the command tree and maps the outcome to an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if securityDenial(err) {
			return exitDenied
		}
		return exitError
	}
	return exitOK
}

// securityDenial separates attack rejections from operational
// failures. Spawn and exit-code errors from the gate are the latter.
func securityDenial(err error) bool {
	for _, sentinel := range []error{
		security.ErrNullByte,
		security.ErrTraversal,
		security.ErrEncodedTraversal,
		security.ErrSymlinkTarget,
		security.ErrSensitivePath,
		command.ErrNotAllowed,
		command.ErrArgRejected,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
