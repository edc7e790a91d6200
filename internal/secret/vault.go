package secret

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
)

const providerVault = "vault"

type vaultReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
}

// VaultResolver reads fields of Vault logical secrets, KV v1 or v2.
type VaultResolver struct {
	reader vaultReader
}

func NewVaultResolver(cfg VaultConfig) (*VaultResolver, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("vault address is required")
	}
	client, err := vault.NewClient(&vault.Config{Address: cfg.Address})
	if err != nil {
		return nil, errors.Wrap(err, "create vault client")
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return &VaultResolver{reader: client.Logical()}, nil
}

func (r *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := expectProvider(ref, providerVault)
	if err != nil {
		return "", err
	}

	segments := parsed.Segments
	field := strings.TrimSpace(parsed.Query.Get("field"))
	if field == "" && len(segments) >= 2 {
		field, segments = segments[len(segments)-1], segments[:len(segments)-1]
	}
	path := strings.Join(segments, "/")
	if path == "" || field == "" {
		return "", errors.Errorf("vault secret %q needs a path and a field", ref)
	}

	s, err := r.reader.ReadWithContext(ctx, path)
	if err != nil {
		return "", errors.Wrapf(err, "read vault secret %s", path)
	}
	if s == nil || s.Data == nil {
		return "", errors.Errorf("vault secret %s not found", path)
	}

	data := s.Data
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}
	v, ok := data[field]
	if !ok {
		return "", errors.Errorf("vault secret %s missing field %s", path, field)
	}
	return fmt.Sprint(v), nil
}
