package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // profiling is opt-in
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/cmd/setup"
	"github.com/mpapenbr/crewchief/pkg/config"
	"github.com/mpapenbr/crewchief/pkg/crewchief"
	"github.com/mpapenbr/crewchief/pkg/crewchief/llm"
	"github.com/mpapenbr/crewchief/pkg/endpoints/api"
	"github.com/mpapenbr/crewchief/pkg/publish/nats"
	"github.com/mpapenbr/crewchief/pkg/session"
	"github.com/mpapenbr/crewchief/pkg/utils"
)

var profilingPort int

//nolint:funlen // flag definitions
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "runs the live session and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"HTTP server listen address")
	cmd.Flags().StringVar(&config.LapInterval,
		"lap-interval",
		session.DefaultInterval.String(),
		"duration between two laps")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish ticks to this NATS server (disabled if empty)")
	cmd.Flags().StringVar(&config.NatsBucket,
		"nats-bucket",
		nats.DefaultBucket,
		"JetStream key-value bucket for the latest tick (disabled if empty)")
	cmd.Flags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	cmd.Flags().StringVar(&config.LLMEndpoint,
		"llm-endpoint",
		llm.DefaultEndpoint,
		"OpenAI compatible chat completion endpoint")
	cmd.Flags().StringVar(&config.LLMModel,
		"llm-model",
		llm.DefaultModel,
		"model used for insights and answers")
	cmd.Flags().StringVar(&config.LLMAPIKey,
		"llm-api-key",
		"",
		"API key for the LLM endpoint (crew chief disabled if empty)")
	cmd.Flags().StringVar(&config.LLMTimeout,
		"llm-timeout",
		llm.DefaultTimeout.String(),
		"timeout for a single completion")
	cmd.Flags().StringVar(&config.InsightCacheTTL,
		"insight-cache-ttl",
		"10m",
		"how long generated insights are kept")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data ('stdout' for console)")
	cmd.Flags().IntVar(&profilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	return cmd
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn("Invalid duration value, using default",
			log.String("value", s), log.Duration("default", defaultVal))
		return defaultVal
	}
	return d
}

//nolint:funlen,cyclop // by design
func startServer(parent context.Context) error {
	if err := config.SetupLogger(); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if profilingPort > 0 {
		startProfiling(profilingPort)
	}

	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			defer telemetry.Shutdown()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
	}

	chiefOpts := []crewchief.Option{
		crewchief.WithCacheTTL(parseDuration(config.InsightCacheTTL, 10*time.Minute)),
	}
	if client, err := llm.New(
		llm.WithEndpoint(config.LLMEndpoint),
		llm.WithModel(config.LLMModel),
		llm.WithAPIKey(config.LLMAPIKey),
		llm.WithTimeout(parseDuration(config.LLMTimeout, llm.DefaultTimeout)),
	); err == nil {
		log.Info("Crew chief enabled", log.String("model", client.Model()))
		chiefOpts = append(chiefOpts, crewchief.WithCompleter(client))
	} else {
		log.Warn("Crew chief disabled", log.ErrorField(err))
	}

	sessOpts := []session.Option{
		session.WithInterval(parseDuration(config.LapInterval, session.DefaultInterval)),
	}
	if config.NatsURL != "" {
		if addr := utils.ExtractAddr(config.NatsURL, "4222"); addr != "" {
			timeout := parseDuration(config.WaitForServices, 15*time.Second)
			if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
				return fmt.Errorf("required services not ready: %w", err)
			}
		}
		pub, err := nats.Connect(ctx, config.NatsURL, config.NatsBucket, nats.WithPerCar(true))
		if err != nil {
			return err
		}
		defer pub.Close()
		log.Info("Publishing ticks to NATS", log.String("url", config.NatsURL))
		sessOpts = append(sessOpts, session.WithPublisher(pub))
	}

	// the service needs the session as state provider and the session resets
	// the service cache on restart
	var chief *crewchief.Service
	sessOpts = append(sessOpts, session.WithResetHook(func(ctx context.Context) {
		chief.Reset(ctx)
	}))
	sess, err := setup.NewSession(sessOpts...)
	if err != nil {
		return err
	}
	chief = crewchief.NewService(append(chiefOpts, crewchief.WithStateProvider(sess))...)

	handler := api.NewHandler(api.WithSession(sess), api.WithCrewChief(chief))
	srv := api.NewServer(config.ServerAddr, handler)
	setupGoRoutinesDump()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gCtx) })
	g.Go(func() error { return srv.Start(gCtx) })
	g.Go(func() error {
		w := newResultsWatcher(config.ResultsFile, sess)
		if err := w.watch(gCtx, nil); err != nil {
			log.Warn("results hot reload disabled", log.ErrorField(err))
		}
		return nil
	})
	log.Info("Server started", log.String("session", sess.Key()))
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", log.ErrorField(err))
		return err
	}
	log.Info("Server terminated")
	return nil
}

func startProfiling(port int) {
	log.Info("Starting profiling server on port", log.Int("port", port))
	go func() {
		//nolint:gosec // localhost only
		err := http.ListenAndServe(fmt.Sprintf("localhost:%d", port), nil)
		if err != nil {
			log.Error("Profiling server stopped", log.ErrorField(err))
		}
	}()
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
