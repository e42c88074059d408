package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/schema"
)

var (
	flagInitGlobal    bool
	flagInitUser      bool
	flagInitOverwrite bool
	flagInitPrompt    bool
)

func init() {
	addLayerFlags(initCmd, &flagInitUser, &flagInitGlobal)
	initCmd.Flags().BoolVar(&flagInitOverwrite, "overwrite", false, "replace an existing configuration file")
	initCmd.Flags().BoolVar(&flagInitPrompt, "prompt", false, "prompt for the secure properties of each profile")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a profile for each profile type",
	Long: `Creates the project configuration in the working directory, or the
global one with --global. Each registered profile type gets a profile with
its schema defaults and becomes the default for its type. The generated
JSON schema is written next to the file and referenced from it.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := activate(store, flagInitUser, flagInitGlobal); err != nil {
		return err
	}

	layer := store.ActiveLayer()
	if layer.Exists && !flagInitOverwrite {
		return fmt.Errorf("%s already exists, use --overwrite to replace it", layer.Path)
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	for _, key := range layer.Properties.Keys() {
		store.Delete(key)
	}

	if err := store.Set(config.KeySchema, "./"+schema.FileName, config.SetOptions{}); err != nil {
		return err
	}
	for _, profileType := range idx.Types() {
		if err := initProfile(store, idx, profileType); err != nil {
			return err
		}
	}
	if err := store.Set(config.KeyAutoStore, true, config.SetOptions{}); err != nil {
		return err
	}

	if err := writeSchemaFile(filepath.Dir(layer.Path), idx); err != nil {
		return err
	}

	if err := store.Save(cmd.Context(), newLazyVault(store.GlobalDir())); err != nil {
		return err
	}

	log.Info().Str("path", layer.Path).Msg("configuration created")
	return nil
}

func initProfile(store *config.Store, idx *schema.Index, profileType string) error {
	objPath := config.ProfileObjectPath(profileType)

	if err := store.Set(objPath+".type", profileType, config.SetOptions{}); err != nil {
		return err
	}
	if err := store.Set(objPath+".properties", idx.Defaults(profileType), config.SetOptions{}); err != nil {
		return err
	}
	if err := store.Set(jsontree.JoinPath(config.KeyDefaults, profileType), profileType, config.SetOptions{}); err != nil {
		return err
	}

	if !flagInitPrompt {
		return nil
	}
	for _, prop := range idx.SecureProperties(profileType) {
		value, err := promptSecret(fmt.Sprintf("%s %s (leave blank to skip)", profileType, prop))
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if err := store.Set(config.PropertyPath(profileType, prop), value, config.SetOptions{Secure: true}); err != nil {
			return err
		}
	}
	return nil
}

func writeSchemaFile(dir string, idx *schema.Index) error {
	data, err := jsontree.EncodeObject(idx.ConfigSchema())
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}
	path := filepath.Join(dir, schema.FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing schema %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("wrote schema")
	return nil
}
