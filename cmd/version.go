package cmd

import (
	"fmt"

	c "github.com/relloyd/sparkify/constants"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information for " + c.AppName,
	Long:  `Show version information for ` + c.AppName,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), `%v
  Version:	%v
  Build date:	%v
`, c.AppName, version, buildDate)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
