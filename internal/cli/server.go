package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/config"
	"mathsprint-service/internal/infra/amqp"
	"mathsprint-service/internal/logging"
	transport "mathsprint-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the sprint server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("store unavailable", zap.String("backend", cfg.Store.Backend), zap.Error(err))
		return err
	}
	defer b.Close()

	records := app.NewRecords(b.store)
	opts := []app.Option{
		app.WithLogger(log),
		app.WithLeaderboard(b.leaderboard(records, config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second))),
	}
	if cfg.AMQP.URL != "" {
		publisher, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	players := b.players(ctx, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	service := app.NewGameService(players, records, app.GameConfig{
		Duration:    cfg.Session.Duration,
		Tick:        config.TTLDuration(cfg.Session.Tick, time.Second),
		GameOverTop: cfg.Leaderboard.Top,
	}, opts...)

	router := transport.NewRouter(transport.NewAPI(service, log), transport.NewWSHandler(service, log))
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting sprint service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
