package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/schema"
	"go.dot.industries/strata/internal/token"
	"go.dot.industries/strata/internal/vault"
)

// vaultService names the vault entries written by strata.
const vaultService = "strata"

const (
	backendKeyring   = "keyring"
	backendHashicorp = "hashicorp"
	backendMemory    = "memory"
)

var (
	flagVerbose      bool
	flagVaultBackend string
	flagVaultAddr    string
	flagVaultPath    string
	flagRoleID       string
	flagSecretID     string
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Layered configuration with profiles and vault-backed secure properties",
	Long: `strata merges project, project-user, global and global-user configuration
files into one view, resolves typed profiles from it and keeps secure
property values in a credential vault instead of the files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagVaultBackend, "vault-backend", envOr("STRATA_VAULT_BACKEND", backendKeyring),
		"where secure values are stored: keyring, hashicorp or memory")
	rootCmd.PersistentFlags().StringVar(&flagVaultAddr, "vault-addr", os.Getenv("VAULT_ADDR"), "HashiCorp Vault address (hashicorp backend)")
	rootCmd.PersistentFlags().StringVar(&flagVaultPath, "vault-path", "secret", "KV v2 mount (hashicorp backend)")
	rootCmd.PersistentFlags().StringVar(&flagRoleID, "role-id", os.Getenv("STRATA_ROLE_ID"), "AppRole role ID (hashicorp backend)")
	rootCmd.PersistentFlags().StringVar(&flagSecretID, "secret-id", os.Getenv("STRATA_SECRET_ID"), "AppRole secret ID (hashicorp backend)")

	cobra.OnInitialize(initLogger)
}

func initLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadStore reads all layers relative to the working directory.
func loadStore() (*config.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return config.Load(config.WithCwd(cwd), config.WithLogger(log.Logger))
}

// activate selects the layer named by --user and --global. Without a
// project, project writes go to the working directory.
func activate(store *config.Store, user, global bool) error {
	projectDir := store.ProjectDir()
	if projectDir == "" && !global {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		projectDir = cwd
	}
	if err := store.Activate(user, global, projectDir); err != nil {
		return err
	}
	log.Debug().Str("layer", store.ActiveLayer().Path).Msg("active layer")
	return nil
}

func addLayerFlags(cmd *cobra.Command, user, global *bool) {
	cmd.Flags().BoolVar(global, "global", false, "use the global configuration in the home directory")
	cmd.Flags().BoolVar(user, "user", false, "use the user configuration, which is not meant to be shared")
}

func loadSchemas() (*schema.Index, error) {
	idx, err := schema.Default()
	if err != nil {
		return nil, fmt.Errorf("loading profile schemas: %w", err)
	}
	return idx, nil
}

// memoryBackend lives as long as the process.
var memoryBackend = vault.NewMemoryBackend()

// lazyVault opens the configured vault on first use so that commands not
// touching secure values never authenticate.
type lazyVault struct {
	globalDir string
	v         *vault.Vault
}

func newLazyVault(globalDir string) *lazyVault {
	return &lazyVault{globalDir: globalDir}
}

func (l *lazyVault) open(ctx context.Context) (*vault.Vault, error) {
	if l.v != nil {
		return l.v, nil
	}
	v, err := openVault(ctx, l.globalDir)
	if err != nil {
		return nil, err
	}
	l.v = v
	return v, nil
}

func (l *lazyVault) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := l.open(ctx)
	if err != nil {
		return "", false, err
	}
	return v.Load(ctx, key)
}

func (l *lazyVault) Save(ctx context.Context, key, value string) error {
	v, err := l.open(ctx)
	if err != nil {
		return err
	}
	return v.Save(ctx, key, value)
}

// openVault builds the vault selected by --vault-backend. Only the OS
// keyring on Windows caps entry sizes, so only it gets chunking.
func openVault(ctx context.Context, globalDir string) (*vault.Vault, error) {
	switch flagVaultBackend {
	case backendKeyring, "":
		return vault.New(vaultService, vault.KeyringBackend{}, vault.WithEntryLimit(runtime.GOOS == "windows")), nil
	case backendMemory:
		return vault.New(vaultService, memoryBackend), nil
	case backendHashicorp:
		client, err := vault.Connect(ctx, vault.KVConfig{
			Address:  flagVaultAddr,
			Mount:    flagVaultPath,
			RoleID:   flagRoleID,
			SecretID: flagSecretID,
		}, vault.WithTokenCache(token.NewSink(globalDir)), vault.WithConnectLogger(log.Logger))
		if err != nil {
			return nil, fmt.Errorf("connecting to vault: %w", err)
		}
		return vault.New(vaultService, vault.NewKVBackend(client, "")), nil
	default:
		return nil, fmt.Errorf("unknown vault backend %q", flagVaultBackend)
	}
}
