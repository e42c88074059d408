package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/exec"
	"go.dot.industries/strata/internal/profile"
	"go.dot.industries/strata/internal/secure"
)

var (
	flagExecProfile string
	flagExecType    string
)

func init() {
	execCmd.Flags().StringVar(&flagExecProfile, "profile", "", "profile to run with")
	execCmd.Flags().StringVar(&flagExecType, "type", "", "run with the default profile of this type")
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec --profile <path> -- <command> [args...]",
	Short: "Run a command with a profile's properties in its environment",
	Long: `Resolves a profile, including its secure properties, and runs the
command with every property exported as STRATA_OPT_<NAME>, where NAME is the
property name in upper snake case.`,
	Example: `  strata exec --profile dev -- ./deploy.sh
  strata exec --type ssh -- env`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	if flagExecProfile == "" && flagExecType == "" {
		return fmt.Errorf("one of --profile or --type is required")
	}

	store, err := loadStore()
	if err != nil {
		return err
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	resolver := profile.New(store.Document(), profile.WithSchemas(idx))

	var p *profile.Profile
	if flagExecProfile != "" {
		p, err = resolver.Resolve(flagExecProfile)
	} else {
		p, err = resolver.ResolveActive(flagExecType)
		if err == nil && p == nil {
			err = fmt.Errorf("no default %s profile", flagExecType)
		}
	}
	if err != nil {
		return err
	}

	values, err := store.SecureValues(cmd.Context(), newLazyVault(store.GlobalDir()))
	if err != nil {
		log.Warn().Err(err).Msg("secure values unavailable, running with plain properties")
		values = secure.ValueMap{}
	}
	p = profile.MergeSecure(p, store.FlattenSecure(values))

	env := exec.ProfileEnv(p.Properties)

	log.Info().
		Str("profile", p.Path).
		Str("type", p.Type).
		Int("properties", len(env)).
		Msg("injecting environment")

	if err := exec.Run(cmd.Context(), args, env); err != nil {
		os.Exit(exec.ExitCode(err))
	}
	return nil
}
