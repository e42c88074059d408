package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
	"go.dot.industries/strata/internal/profile"
)

var (
	flagSetGlobal bool
	flagSetUser   bool
	flagSetSecure bool
	flagSetJSON   bool
)

func init() {
	addLayerFlags(setCmd, &flagSetUser, &flagSetGlobal)
	setCmd.Flags().BoolVar(&flagSetSecure, "secure", false, "store the value in the vault instead of the file")
	setCmd.Flags().BoolVar(&flagSetJSON, "json", false, "parse the value as JSON")
	rootCmd.AddCommand(setCmd)
}

var setCmd = &cobra.Command{
	Use:   "set <property> <value>",
	Short: "Set a property in a configuration file",
	Long: `Sets the property at a dotted path such as
profiles.dev.properties.host. Values of profile properties are converted to
the type their schema declares. Properties the schema marks secure, or
already declared secure, are stored in the vault.`,
	Example: `  strata set profiles.dev.properties.port 8443
  strata set profiles.dev.properties.password hunter2 --secure
  strata set plugins '["audit"]' --json --global`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	propertyPath, raw := args[0], args[1]

	store, err := loadStore()
	if err != nil {
		return err
	}
	if err := activate(store, flagSetUser, flagSetGlobal); err != nil {
		return err
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	opts := config.SetOptions{Secure: flagSetSecure, JSON: flagSetJSON}
	var value any = raw

	if profilePath, prop, ok := config.SplitPropertyPath(propertyPath); ok {
		profileType := profileTypeOf(store, profilePath)
		if idx.IsSecure(profileType, prop) {
			opts.Secure = true
		}
		if !opts.JSON {
			value = idx.Coerce(profileType, prop, raw)
		}
	} else if !opts.JSON {
		value = idx.Coerce("", "", raw)
	}

	if err := store.Set(propertyPath, value, opts); err != nil {
		return err
	}
	if err := store.Save(cmd.Context(), newLazyVault(store.GlobalDir())); err != nil {
		return err
	}

	log.Info().
		Str("property", propertyPath).
		Bool("secure", opts.Secure).
		Str("path", store.ActiveLayer().Path).
		Msg("property set")
	return nil
}

// profileTypeOf returns the type of profilePath in the active layer, or in
// the merged document when the active layer does not set one.
func profileTypeOf(store *config.Store, profilePath string) string {
	objPath := config.ProfileObjectPath(profilePath)
	if v, ok := jsontree.GetPath(store.ActiveLayer().Properties, objPath+".type"); ok {
		if t, ok := v.AsString(); ok {
			return t
		}
	}
	p, err := profile.New(store.Document()).Resolve(profilePath)
	if err != nil {
		return ""
	}
	return p.Type
}
