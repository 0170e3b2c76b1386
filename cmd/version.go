package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridable at build time with
// -ldflags "-X autoria-scraper/cmd.version=...".
var version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("autoria-scraper %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
