package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
)

var (
	flagSecureGlobal bool
	flagSecureUser   bool
)

func init() {
	addLayerFlags(secureCmd, &flagSecureUser, &flagSecureGlobal)
	rootCmd.AddCommand(secureCmd)
}

var secureCmd = &cobra.Command{
	Use:   "secure",
	Short: "Prompt for the values of every secure property",
	Long: `Prompts for each property the selected configuration file declares
secure and stores the answers in the vault. Leave an answer blank to keep
the stored value.`,
	Args: cobra.NoArgs,
	RunE: runSecure,
}

func runSecure(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := activate(store, flagSecureUser, flagSecureGlobal); err != nil {
		return err
	}

	layer := store.ActiveLayer()
	paths := layer.SecurePaths()
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s declares no secure properties\n", layer.Path)
		return nil
	}

	updated := 0
	for _, p := range paths {
		value, err := promptSecret(p)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if err := store.Set(p, value, config.SetOptions{Secure: true}); err != nil {
			return err
		}
		updated++
	}

	if updated == 0 {
		return nil
	}
	if err := store.Save(cmd.Context(), newLazyVault(store.GlobalDir())); err != nil {
		return err
	}

	log.Info().Int("updated", updated).Str("path", layer.Path).Msg("secure properties stored")
	return nil
}
