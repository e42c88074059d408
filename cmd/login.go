package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/autostore"
)

const (
	propTokenType  = "tokenType"
	propTokenValue = "tokenValue"
)

var (
	flagLoginType       string
	flagLoginProfile    string
	flagLoginTokenType  string
	flagLoginTokenValue string
)

func init() {
	loginCmd.Flags().StringVar(&flagLoginType, "type", "api", "profile type to store the token in")
	loginCmd.Flags().StringVar(&flagLoginProfile, "profile", "", "profile to store the token in (default: the type's default profile)")
	loginCmd.Flags().StringVar(&flagLoginTokenType, "token-type", "bearer", "kind of token")
	loginCmd.Flags().StringVar(&flagLoginTokenValue, "token-value", "", "token to store (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}

// session is what a login produces for its profile.
type session struct {
	TokenType  string `mapstructure:"tokenType"`
	TokenValue string `mapstructure:"tokenValue"`
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session token in a profile",
	Long: `Stores a token in the named profile, or the default profile of --type,
in the configuration file that defines the profile. Token values go to the
vault. Nothing is written when autoStore is false.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	idx, err := loadSchemas()
	if err != nil {
		return err
	}

	coord := autostore.New(store, newLazyVault(store.GlobalDir()),
		autostore.WithSchemas(idx), autostore.WithLogger(log.Logger))

	find := autostore.FindOptions{ProfileTypes: []string{flagLoginType}}
	if flagLoginProfile != "" {
		find.Explicit = map[string]string{flagLoginType: flagLoginProfile}
	}

	active, err := coord.FindActiveProfile(find)
	if err != nil {
		return err
	}
	if active == nil {
		return fmt.Errorf("no %s profile to log in to, pass --profile or set a default", flagLoginType)
	}

	tok := flagLoginTokenValue
	if tok == "" {
		tok, err = promptSecret(fmt.Sprintf("Token for %s", active.ProfilePath))
		if err != nil {
			return err
		}
	}
	if tok == "" {
		return fmt.Errorf("token must not be empty")
	}

	warning := coord.StoreSessionProperties(cmd.Context(), autostore.StoreOptions{
		Profile:      active,
		Session:      session{TokenType: flagLoginTokenType, TokenValue: tok},
		PropsToStore: []string{propTokenType, propTokenValue},
	})
	if warning != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
		return nil
	}

	log.Info().Str("profile", active.ProfilePath).Msg("logged in")
	return nil
}
