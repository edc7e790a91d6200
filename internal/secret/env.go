package secret

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const providerEnv = "env"

// EnvResolver reads process environment variables. Path segments are
// joined with underscores unless ?name= overrides them.
type EnvResolver struct{}

func (EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	parsed, err := expectProvider(ref, providerEnv)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(parsed.Query.Get("name"))
	if name == "" {
		name = strings.Join(parsed.Segments, "_")
	}
	if name == "" {
		return "", errors.Errorf("env secret %q requires a name", ref)
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", errors.Errorf("environment variable %s not set", name)
	}
	return value, nil
}
