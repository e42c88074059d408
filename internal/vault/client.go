package vault

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// KVConfig locates the KV v2 mount secure values are written to and the
// AppRole credentials used to reach it.
type KVConfig struct {
	Address  string
	Mount    string
	RoleID   string
	SecretID string
}

// TokenCache keeps the Vault token between invocations.
type TokenCache interface {
	Read() (string, bool, error)
	Write(token string) error
}

// ConnectOption configures Connect.
type ConnectOption func(*connector)

type connector struct {
	cache  TokenCache
	logger zerolog.Logger
}

// WithTokenCache reuses the token in cache while Vault still honors it and
// stores the token of a fresh login there.
func WithTokenCache(cache TokenCache) ConnectOption {
	return func(c *connector) {
		c.cache = cache
	}
}

// WithConnectLogger sets the logger token cache problems are reported to.
func WithConnectLogger(logger zerolog.Logger) ConnectOption {
	return func(c *connector) {
		c.logger = logger
	}
}

// Client is an authenticated connection to one KV v2 mount.
type Client struct {
	api   *vaultapi.Client
	mount string
}

// Connect returns a client for cfg.Mount. A cached token with time left is
// used as is; otherwise the client logs in with AppRole.
func Connect(ctx context.Context, cfg KVConfig, opts ...ConnectOption) (*Client, error) {
	conn := &connector{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(conn)
	}

	client, err := newClient(cfg.Address, cfg.Mount, "")
	if err != nil {
		return nil, err
	}

	if conn.cache != nil {
		tok, ok, err := conn.cache.Read()
		if err != nil {
			conn.logger.Debug().Err(err).Msg("ignoring unreadable vault token cache")
		}
		if ok {
			client.api.SetToken(tok)
			if client.tokenLive(ctx) {
				conn.logger.Debug().Msg("using cached vault token")
				return client, nil
			}
			conn.logger.Debug().Msg("cached vault token expired, logging in")
		}
	}

	if err := client.loginAppRole(ctx, cfg.RoleID, cfg.SecretID); err != nil {
		return nil, err
	}

	if conn.cache != nil {
		if err := conn.cache.Write(client.api.Token()); err != nil {
			conn.logger.Warn().Err(err).Msg("failed to cache vault token")
		}
	}

	return client, nil
}

// newClient builds a client for address. The VAULT_TOKEN environment
// variable is ignored; only token is used.
func newClient(address, mount, token string) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address

	api, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	api.ClearToken()
	if token != "" {
		api.SetToken(token)
	}

	return &Client{api: api, mount: mount}, nil
}

// tokenLive reports whether Vault still accepts the client's token and
// reports time left on it.
func (c *Client) tokenLive(ctx context.Context) bool {
	if c.api.Token() == "" {
		return false
	}

	secret, err := c.api.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil || secret == nil || secret.Data == nil {
		return false
	}

	ttl, err := secret.TokenTTL()
	return err == nil && ttl > 0
}

func (c *Client) loginAppRole(ctx context.Context, roleID, secretID string) error {
	if roleID == "" || secretID == "" {
		return fmt.Errorf("approle login: role ID and secret ID are required")
	}

	secret, err := c.api.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("approle login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("approle login: empty auth response")
	}

	c.api.SetToken(secret.Auth.ClientToken)
	return nil
}
