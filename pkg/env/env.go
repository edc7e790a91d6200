package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/pkg/log"
)

var variables = new(Environment)

// Process the environment variables set for protocaas.
func Process() error {
	if err := envconfig.Process("protocaas", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevel(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by protocaas.
type Environment struct {
	LogLevel                 string        `default:"info"`
	Port                     int           `default:"8080"`
	DatabaseType             string        `default:"sqlite"`
	DatabaseDSN              string        `default:"protocaas.db"`
	AdminUserIDs             []string      `default:""`
	DefaultComputeResourceID string        `default:""`
	OutputBucketURI          string        `default:""`
	OutputBucketCredentials  string        `default:""`
	OutputBucketBaseURL      string        `default:""`
	OutputUploadURLTTL       time.Duration `default:"30m"`
	PubsubBackend            string        `default:"bus"`
	RedisAddr                string        `default:"localhost:6379"`
	RedisPassword            string        `default:""`
	PubsubSubscribeKey       string        `default:""`
	AllowedOrigins           []string      `default:"http://localhost:3000,http://localhost:5173,https://flatironinstitute.github.io,https://scratchrealm.github.io"`
	CacheTTL                 time.Duration `default:"60s"`
	TimestampSkew            time.Duration `default:"30s"`
	SizeProbeTimeout         time.Duration `default:"30s"`
	InlineContentLimit       int           `default:"2048"`
	NodeSweepSchedule        string        `default:"@every 1h"`
	NodeStaleAfter           time.Duration `default:"168h"`
	VaultAddress             string        `default:""`
	VaultToken               string        `default:""`
	VaultNamespace           string        `default:""`
	KubernetesSecrets        bool          `default:"false"`
	KubernetesNamespace      string        `default:"default"`
	KubeConfig               string        `default:""`
	GithubAPIURL             string        `default:"https://api.github.com"`
	GithubTokenCacheTTL      time.Duration `default:"5m"`
}
