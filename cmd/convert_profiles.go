package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/migrate"
)

var (
	flagConvertDelete bool
	flagConvertDryRun bool
)

func init() {
	convertProfilesCmd.Flags().BoolVar(&flagConvertDelete, "delete", false, "remove the legacy profiles after converting them")
	convertProfilesCmd.Flags().BoolVar(&flagConvertDryRun, "dry-run", false, "show what would be converted without writing")
	rootCmd.AddCommand(convertProfilesCmd)
}

var convertProfilesCmd = &cobra.Command{
	Use:   "convert-profiles",
	Short: "Convert legacy profiles into the global configuration",
	Long: `Reads the legacy per-profile TOML files under ~/.strata/profiles and
writes them as profiles named <type>_<name> into the global configuration.
Secure properties go to the vault. Profiles that already exist are skipped.`,
	Args: cobra.NoArgs,
	RunE: runConvertProfiles,
}

func runConvertProfiles(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	inv, err := migrate.Scan(cmd.Context(), store.GlobalDir())
	if err != nil {
		return err
	}
	if len(inv.Profiles) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No legacy profiles found in %s\n", migrate.ProfilesDir(store.GlobalDir()))
		return nil
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	result, err := migrate.Convert(inv, idx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if flagConvertDryRun {
		for _, cp := range result.Profiles {
			fmt.Fprintf(out, "%s -> profiles.%s (%d properties, %d secure)\n",
				filepath.Base(cp.Source), cp.Name, cp.Properties.Len(), cp.Secure.Len())
		}
		for _, t := range sortedKeys(result.Defaults) {
			fmt.Fprintf(out, "defaults.%s -> %s\n", t, result.Defaults[t])
		}
		return nil
	}

	applied, err := migrate.Apply(cmd.Context(), store, result, newLazyVault(store.GlobalDir()))
	if err != nil {
		return err
	}

	for _, name := range applied.Converted {
		fmt.Fprintf(out, "Converted %s\n", name)
	}
	for _, name := range applied.Skipped {
		fmt.Fprintf(out, "Skipped %s (already exists)\n", name)
	}

	if flagConvertDelete {
		if err := migrate.Remove(inv); err != nil {
			return err
		}
		log.Info().Str("path", migrate.ProfilesDir(inv.Dir)).Msg("removed legacy profiles")
	}
	return nil
}
