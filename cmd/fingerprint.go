/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/jacobarthurs/queryinsight/internal/fingerprint"
	"github.com/jacobarthurs/queryinsight/internal/output"
	"github.com/jacobarthurs/queryinsight/internal/plan"

	"github.com/spf13/cobra"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [file]",
	Short: "Print the normalized form of a query",
	Long: `Print the fingerprint of a query: its text with literals replaced by
numbered placeholders and whitespace collapsed. Queries that differ only in
literal values share a fingerprint.

Use "-" to read from stdin. If no file is provided, enters interactive mode.`,
	Example: `  queryinsight fingerprint query.sql
  echo "SELECT * FROM users WHERE id = 42" | queryinsight fingerprint -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := validateFormat(format); err != nil {
			return err
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		sqlText, err := plan.ReadText(file, "")
		if err != nil {
			return err
		}

		fp := fingerprint.Normalize(sqlText)
		if format == "json" {
			return output.RenderJSON(os.Stdout, struct {
				SQL         string `json:"sql"`
				Fingerprint string `json:"fingerprint"`
			}{sqlText, fp})
		}
		fmt.Println(fp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
	fingerprintCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
}
