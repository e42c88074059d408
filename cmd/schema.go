package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/jsontree"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of configuration files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadSchemas()
		if err != nil {
			return err
		}
		data, err := jsontree.EncodeObject(idx.ConfigSchema())
		if err != nil {
			return fmt.Errorf("encoding schema: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
