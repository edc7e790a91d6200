package start

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/api"
	"github.com/protocaas/protocaas/api/rpc"
	"github.com/protocaas/protocaas/internal/bucket"
	"github.com/protocaas/protocaas/internal/computeresource"
	"github.com/protocaas/protocaas/internal/file"
	"github.com/protocaas/protocaas/internal/identity"
	"github.com/protocaas/protocaas/internal/job"
	"github.com/protocaas/protocaas/internal/metrics"
	"github.com/protocaas/protocaas/internal/permission"
	"github.com/protocaas/protocaas/internal/pubsub"
	"github.com/protocaas/protocaas/internal/secret"
	"github.com/protocaas/protocaas/internal/store"
	"github.com/protocaas/protocaas/internal/sweeper"
	"github.com/protocaas/protocaas/internal/workspace"
	"github.com/protocaas/protocaas/pkg/db"
	"github.com/protocaas/protocaas/pkg/env"
	"github.com/protocaas/protocaas/pkg/log"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start a protocaas API server"
	long    = "This command starts the protocaas API server and the stale node sweeper"
	example = "protocaas start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "begin", "serve"},
		Example:    example,
		RunE:       start,
	}
)

var cancel context.CancelFunc

func start(cmd *cobra.Command, args []string) error {
	signalChan := make(chan os.Signal, 1)

	go func() {
		for s := range signalChan {
			switch s {
			case syscall.SIGUSR1:
				log.Info("dumping stack traces due to SIGUSR1 signal")
				if profile := pprof.Lookup("goroutine"); profile != nil {
					if err := profile.WriteTo(os.Stdout, 1); err != nil {
						log.Error("write goroutine profile", "error", err)
					}
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Info("gracefully shutting down", "signal", s.String())
				shutdown()
				os.Exit(0)
			}
		}
	}()

	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)

	var errs = make(chan error)
	ctx, cancelFunc := context.WithCancel(context.Background())
	cancel = cancelFunc

	log.Info("migrating database")
	if err := db.Migrate(); err != nil {
		log.Fatal("database migration failure", "error", err)
	}

	vars := env.Variables()
	metrics.Register()

	s := store.New(db.Connection(), vars.CacheTTL)

	app, err := build(ctx, vars, s)
	if err != nil {
		log.Fatal("configuration failure", "error", err)
	}

	sw, err := sweeper.New(s, vars.NodeSweepSchedule, vars.NodeStaleAfter)
	if err != nil {
		log.Fatal("node sweeper configuration failure", "error", err)
	}

	go func() {
		log.Info("spinning up api", "port", vars.Port)
		errs <- api.Start(api.Config{
			Dispatcher:     app,
			AllowedOrigins: vars.AllowedOrigins,
			Database:       s,
			Metrics:        true,
		}, vars.Port)
	}()

	go func() {
		log.Info("launching node sweeper", "schedule", vars.NodeSweepSchedule)
		sw.Run(ctx)
	}()

	defer shutdown()

	return <-errs
}

// build wires the request dispatcher from the environment.
func build(ctx context.Context, vars env.Environment, s *store.Store) (*rpc.Dispatcher, error) {
	evaluator := permission.Evaluator{DefaultComputeResourceID: vars.DefaultComputeResourceID}

	publisher, err := pubsub.New(pubsub.Config{
		Backend:       vars.PubsubBackend,
		RedisAddr:     vars.RedisAddr,
		RedisPassword: vars.RedisPassword,
	})
	if err != nil {
		return nil, err
	}

	outputs, err := buildOutputs(ctx, vars)
	if err != nil {
		return nil, err
	}

	resolver := identity.NewResolver(vars.AdminUserIDs, identity.NewGitHubVerifier(
		vars.GithubTokenCacheTTL,
		identity.WithBaseURL(vars.GithubAPIURL),
	))
	resolver.Skew = vars.TimestampSkew

	remote := file.NewRemote(vars.SizeProbeTimeout)

	return rpc.New(rpc.Config{
		Resolver: resolver,
		Jobs: job.NewEngine(job.Config{
			Store:     s,
			Evaluator: evaluator,
			Publisher: publisher,
			Outputs:   outputs,
			Prober:    remote,
		}),
		Workspaces: workspace.NewService(s, evaluator, outputs),
		Files:      file.NewService(s, evaluator, remote, vars.InlineContentLimit),
		ComputeResources: computeresource.NewService(computeresource.Config{
			Store:        s,
			Evaluator:    evaluator,
			SubscribeKey: vars.PubsubSubscribeKey,
		}),
	}), nil
}

// buildOutputs connects the output bucket. Without one, jobs can run
// but cannot obtain upload URLs or complete with outputs.
func buildOutputs(ctx context.Context, vars env.Environment) (job.Outputs, error) {
	outputs := job.Outputs{BaseURL: vars.OutputBucketBaseURL, TTL: vars.OutputUploadURLTTL}
	if vars.OutputBucketURI == "" {
		log.Warn("no output bucket configured")
		return outputs, nil
	}

	uri, err := bucket.ParseURI(vars.OutputBucketURI)
	if err != nil {
		return outputs, err
	}

	secrets, err := buildSecrets(vars)
	if err != nil {
		return outputs, err
	}
	raw, err := secret.Value(ctx, secrets, vars.OutputBucketCredentials)
	if err != nil {
		return outputs, errors.Wrap(err, "resolve output bucket credentials")
	}
	creds, err := bucket.ParseCredentials(raw)
	if err != nil {
		return outputs, err
	}

	b, err := bucket.New(uri, creds)
	if err != nil {
		return outputs, err
	}
	outputs.Signer = b
	outputs.Remover = b

	if outputs.BaseURL == "" {
		if outputs.BaseURL, err = uri.ObjectURL(""); err != nil {
			return outputs, errors.Wrap(err, "output bucket base URL")
		}
	}
	log.Info("output bucket configured", "service", uri.Service, "bucket", uri.Bucket, "base_url", outputs.BaseURL)
	return outputs, nil
}

func buildSecrets(vars env.Environment) (secret.Resolver, error) {
	cfg := secret.Config{}
	if vars.VaultAddress != "" {
		cfg.Vault = &secret.VaultConfig{
			Address:   vars.VaultAddress,
			Token:     vars.VaultToken,
			Namespace: vars.VaultNamespace,
		}
	}
	if vars.KubernetesSecrets {
		cfg.Kubernetes = &secret.KubernetesConfig{
			KubeConfigPath: vars.KubeConfig,
			Namespace:      vars.KubernetesNamespace,
		}
	}
	return secret.NewResolver(cfg)
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := api.Shutdown(ctx); err != nil {
		log.Error("api shutdown failure", "error", err)
	}
}
