/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"

	"github.com/jacobarthurs/queryinsight/internal/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with defaults",
	Long: `Create the queryinsight config file populated with default settings.

The config file stores named database connection profiles, the local store
location, and collection, analysis, trend, and watch settings. If a config
file already exists, it will not be overwritten unless --force is given;
existing profiles are kept either way.`,
	Example: `  # Create default config
  queryinsight init

  # Reset settings to defaults
  queryinsight init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := config.Init(force)
		if err != nil {
			return err
		}

		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config file")
}
