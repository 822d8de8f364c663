package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

const approleLoginPath = "auth/approle/login"

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

// ErrBadReference indicates a malformed "vault:" DSN reference.
var ErrBadReference = errors.New("malformed vault reference")

type Option func(*config)

type config struct {
	address  string
	token    string
	roleID   string
	secretID string
}

// Client reads DSN secrets from Vault KV v2.
type Client struct {
	api *vault.Client
}

func WithAddress(address string) Option {
	return func(c *config) {
		if address != "" {
			c.address = address
		}
	}
}

func WithToken(token string) Option {
	return func(c *config) {
		if token != "" {
			c.token = token
		}
	}
}

func WithAppRole(roleID, secretID string) Option {
	return func(c *config) {
		c.roleID = roleID
		c.secretID = secretID
	}
}

// NewClient creates and initializes a Vault client using provided options.
// It performs AppRole login when a role ID and secret ID are both set,
// otherwise a static token (from env or WithToken) is used.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}
	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	client := &Client{api: api}
	if cfg.token != "" {
		api.SetToken(cfg.token)
	}
	if cfg.roleID != "" && cfg.secretID != "" {
		if err := client.loginAppRole(ctx, cfg.roleID, cfg.secretID); err != nil {
			return nil, fmt.Errorf("%w: AppRole login: %v", ErrClientInit, err)
		}
	}
	return client, nil
}

func (c *Client) loginAppRole(ctx context.Context, roleID, secretID string) error {
	secret, err := c.api.Logical().WriteWithContext(ctx, approleLoginPath, map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return err
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return errors.New("login response carried no client token")
	}
	c.api.SetToken(secret.Auth.ClientToken)
	return nil
}

// LookupDSN resolves a reference of the form
// "vault:<mount>/<path>#<field>" against KV v2 and returns the stored DSN.
func (c *Client) LookupDSN(ctx context.Context, ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "vault:")
	if !ok {
		return "", fmt.Errorf("%q: %w", ref, ErrBadReference)
	}
	location, field, ok := strings.Cut(rest, "#")
	if !ok || field == "" {
		return "", fmt.Errorf("%q: missing #field: %w", ref, ErrBadReference)
	}
	mount, secretPath, ok := strings.Cut(location, "/")
	if !ok || mount == "" || secretPath == "" {
		return "", fmt.Errorf("%q: missing mount or path: %w", ref, ErrBadReference)
	}

	secret, err := c.api.KVv2(mount).Get(ctx, secretPath)
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", location, err)
	}
	dsn, ok := secret.Data[field].(string)
	if !ok {
		return "", fmt.Errorf("secret %q has no string field %q: %w", location, field, ErrBadReference)
	}
	return dsn, nil
}
