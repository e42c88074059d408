package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/exec"
)

var (
	flagEditGlobal bool
	flagEditUser   bool
)

func init() {
	addLayerFlags(editCmd, &flagEditUser, &flagEditGlobal)
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open a configuration file in your editor",
	Long: `Opens the selected configuration file in $EDITOR (vi, or notepad on
Windows, when unset) and checks that it is still valid JSON afterwards.`,
	Args: cobra.NoArgs,
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := activate(store, flagEditUser, flagEditGlobal); err != nil {
		return err
	}

	layer := store.ActiveLayer()
	if !layer.Exists {
		return fmt.Errorf("%s does not exist, run strata init first", layer.Path)
	}

	if err := exec.Edit(cmd.Context(), layer.Path); err != nil {
		return err
	}

	if _, _, err := config.LoadLayer(layer.Path); err != nil {
		return err
	}

	log.Info().Str("path", layer.Path).Msg("configuration saved")
	return nil
}
