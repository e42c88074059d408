package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every configuration file",
	Long: `Checks each existing configuration file against the configuration
schema and the property schemas of its profile types, then checks that every
default names a profile that exists.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errors, checked := 0, 0

	for _, l := range store.Layers() {
		if !l.Exists {
			continue
		}
		checked++
		if err := config.ValidateLayer(l, idx); err != nil {
			fmt.Fprintf(out, "%s: ERROR - %s\n", l.Path, err)
			errors++
			continue
		}
		log.Debug().Str("layer", l.Name()).Msg("layer valid")
		fmt.Fprintf(out, "%s: valid\n", l.Path)
	}

	if err := config.ValidateDefaults(store.Document()); err != nil {
		fmt.Fprintf(out, "defaults: ERROR - %s\n", err)
		errors++
	}

	if errors > 0 {
		return fmt.Errorf("%d configuration problem(s) found", errors)
	}

	fmt.Fprintf(out, "\nAll %d config files are valid.\n", checked)
	return nil
}
