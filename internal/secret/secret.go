// Package secret resolves secret:// references so that credentials such
// as the output bucket's key pair never have to sit in plain
// environment variables.
//
//	secret://env/NAME
//	secret://vault/<path>/<field>        or ?field=<field>
//	secret://k8s/[<namespace>/]<name>/<key>
package secret

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const scheme = "secret"

// Resolver turns a reference into its value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Reference is a parsed secret:// URI.
type Reference struct {
	Raw      string
	Provider string
	Segments []string
	Query    url.Values
}

func Parse(ref string) (*Reference, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "parse secret reference %q", ref)
	}
	if u.Scheme != scheme {
		return nil, errors.Errorf("invalid secret scheme %q", u.Scheme)
	}
	provider := strings.ToLower(strings.TrimSpace(u.Host))
	if provider == "" {
		return nil, errors.Errorf("secret reference %q missing provider", ref)
	}
	var segments []string
	if path := strings.Trim(u.Path, "/"); path != "" {
		segments = strings.Split(path, "/")
	}
	return &Reference{Raw: ref, Provider: provider, Segments: segments, Query: u.Query()}, nil
}

// IsReference reports whether value should be resolved rather than
// used literally.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), scheme+"://")
}

// Value resolves value when it is a reference and returns it unchanged
// otherwise.
func Value(ctx context.Context, r Resolver, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	if r == nil {
		return "", errors.New("secret resolver is not configured")
	}
	return r.Resolve(ctx, strings.TrimSpace(value))
}

// Multi dispatches on the reference provider.
type Multi struct {
	providers map[string]Resolver
}

func NewMulti() *Multi {
	return &Multi{providers: map[string]Resolver{}}
}

// Register adds r under each of the given provider names.
func (m *Multi) Register(r Resolver, names ...string) {
	for _, n := range names {
		m.providers[strings.ToLower(strings.TrimSpace(n))] = r
	}
}

func (m *Multi) Providers() []string {
	keys := make([]string, 0, len(m.providers))
	for k := range m.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Multi) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := Parse(ref)
	if err != nil {
		return "", err
	}
	r, ok := m.providers[parsed.Provider]
	if !ok {
		return "", errors.Errorf("secret provider %q not configured", parsed.Provider)
	}
	return r.Resolve(ctx, ref)
}

// Config selects the providers to enable.
type Config struct {
	Vault      *VaultConfig
	Kubernetes *KubernetesConfig
}

// NewResolver returns a Multi with the env provider and any configured
// remote providers.
func NewResolver(cfg Config) (*Multi, error) {
	m := NewMulti()
	m.Register(EnvResolver{}, providerEnv)
	if cfg.Vault != nil {
		v, err := NewVaultResolver(*cfg.Vault)
		if err != nil {
			return nil, err
		}
		m.Register(v, providerVault)
	}
	if cfg.Kubernetes != nil {
		m.Register(NewKubernetesResolver(*cfg.Kubernetes), providerKubernetes, "kubernetes")
	}
	return m, nil
}

func expectProvider(ref, provider string, accepted ...string) (*Reference, error) {
	parsed, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	for _, p := range append(accepted, provider) {
		if parsed.Provider == p {
			return parsed, nil
		}
	}
	return nil, errors.Errorf("%s resolver cannot handle provider %q", provider, parsed.Provider)
}
