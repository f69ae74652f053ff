package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/parlance"
	"github.com/aretw0/parlance/internal/logging"
	httpAdapter "github.com/aretw0/parlance/pkg/adapters/http"
	"github.com/aretw0/parlance/pkg/adapters/redis"
	"github.com/aretw0/parlance/pkg/adapters/sqlite"
	"github.com/aretw0/parlance/pkg/adapters/ws"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/aretw0/parlance/pkg/observability"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/aretw0/parlance/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long: `Serves one flow to many concurrent sessions. UIs create sessions, click and
follow snapshot diffs over HTTP; speech hosts connect to /sessions/{id}/speech.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().StringP("flow", "f", "appointment", "Built-in flow name or YAML flow file")
	serveCmd.Flags().Uint64("seed", 0, "Seed for reproducible randomized prompts")
	serveCmd.Flags().Bool("nlu", false, "Request NLU interpretation on listens")
	serveCmd.Flags().String("locale", "en-US", "Speech locale")
	serveCmd.Flags().String("voice", "", "Speech synthesis voice")
	serveCmd.Flags().Duration("noinput-timeout", 10*time.Second, "No-input timeout requested on listens")
	serveCmd.Flags().String("redis-url", "", "Redis URL for session ownership locks and transcripts")
	serveCmd.Flags().String("sqlite", "", "SQLite transcript database")
}

func serve(ctx context.Context) error {
	logger = logging.NewWithWriter(os.Stderr, cfg.Level(), true)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	hub := ws.NewHub(ws.WithLogger(logger))

	var (
		sink  ports.TranscriptSink
		mopts = []session.Option{session.WithLogger(logger), session.WithObserver(metrics)}
	)
	if cfg.Redis.URL != "" {
		o, err := backend.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		client := backend.NewClient(o)
		defer client.Close()
		mopts = append(mopts, session.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
		sink = redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix+"transcript:"),
			redis.WithTTL(cfg.Transcript.RedisTTL),
		)
	}
	if cfg.Transcript.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Transcript.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		sink = db
	}

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger), metrics.Hooks()}
	if sink != nil {
		rec := observability.NewTranscriptRecorder(sink, observability.WithRecorderLogger(logger))
		defer rec.Close()
		hooks = append(hooks, rec.Hooks())
	}

	eng, err := newEngine(grammar.New(),
		parlance.WithCollaboratorFactory(hub.Collaborator),
		parlance.WithLifecycleHooks(domain.ChainHooks(hooks...)),
	)
	if err != nil {
		return err
	}
	sessions := session.NewManager(eng.Spawn, mopts...)
	defer sessions.CloseAll(context.Background())

	hopts := []httpAdapter.Option{
		httpAdapter.WithSpeechHub(hub),
		httpAdapter.WithGatherer(reg),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithVersion(parlance.Version),
	}
	if sink != nil {
		hopts = append(hopts, httpAdapter.WithTranscripts(sink))
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpAdapter.NewHandler(sessions, eng.Definition(), hopts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting Parlance server", "addr", srv.Addr, "flow", eng.Name, "version", parlance.Version)
		serverErrors <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		logger.Info("Parlance server stopped gracefully")
		return nil
	}
}
