package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navikt/roomswitch/internal/api"
	"github.com/navikt/roomswitch/internal/bridge"
	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/logging"
	"github.com/navikt/roomswitch/internal/metrics"
	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/provisioning"
	"github.com/navikt/roomswitch/internal/relay"
	"github.com/navikt/roomswitch/internal/repository"
	"github.com/navikt/roomswitch/internal/service"
	"github.com/navikt/roomswitch/internal/session"
	"github.com/navikt/roomswitch/internal/transport"
	"github.com/navikt/roomswitch/internal/web"
	"github.com/spf13/cobra"
)

// options are the command line overrides of the environment configuration
type options struct {
	room        string
	displayName string
	port        string
	logLevel    string
	codec       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "roomswitch",
		Short: "Switch between two meeting rooms and relay media across them",
		Long: `roomswitch keeps one participant in one of two paired meeting rooms.
It provisions the pair, switches between the rooms on request and can relay
the participant's media from the current room into the other one.
Actions are exposed over HTTP; status is streamed on /events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			applyFlags(cmd, opts, &cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, models.RoomID(opts.room))
		},
	}

	cmd.Flags().StringVar(&opts.room, "room", "", "join this room on startup (same as /join?room=)")
	cmd.Flags().StringVar(&opts.displayName, "display-name", "", "participant name (env DISPLAY_NAME)")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "HTTP port (env PORT)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "transport frame codec: json or msgpack (env TRANSPORT_CODEC)")

	return cmd
}

// applyFlags lets explicitly set flags win over the environment
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	if cmd.Flags().Changed("display-name") {
		cfg.Session.DisplayName = opts.displayName
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if cmd.Flags().Changed("codec") {
		cfg.Transport.Codec = opts.codec
	}
}

func run(ctx context.Context, cfg config.Config, room models.RoomID) error {
	logger := logging.Init(cfg.LogLevel)

	if !cfg.Provisioning.IsProvisioningConfigValid() {
		logger.Warn("ROOMS_AUTH_TOKEN is not set, preparing rooms will fail")
	}

	// Initialize the repository using the factory
	repo, err := repository.NewRepository(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}

	// Close the Redis connection on exit when one is used
	if redisRepo, ok := repo.(interface{ Close() error }); ok {
		defer func() {
			if err := redisRepo.Close(); err != nil {
				logger.Error("error closing Redis connection", "error", err)
			}
		}()
	}

	m := metrics.New()
	allocator := provisioning.NewAllocator(provisioning.NewAPIClient(cfg.Provisioning), m, logger)

	client, err := transport.NewClient(cfg.Transport, logger)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	relayCoord := relay.NewCoordinator(client, relay.AcceptAll, m, logger)
	sessionCtrl := session.NewController(client, relayCoord, session.Options{
		MicEnabled:    cfg.Session.MicEnabled,
		WebcamEnabled: cfg.Session.WebcamEnabled,
		GracePeriod:   cfg.Session.GracePeriod,
	}, m, logger)

	go bridge.New(sessionCtrl, relayCoord, m, logger).Run(ctx, client.Events())

	roomService := service.NewRoomService(allocator, repo, sessionCtrl, relayCoord, cfg.Session, cfg.Provisioning.AuthToken, logger)

	// Register the SSE callbacks with the room service
	sseManager := web.NewSSEManager(logger)
	roomService.RegisterUpdateCallback(sseManager.NotifyStatus)
	roomService.RegisterNoticeCallback(sseManager.NotifyNotice)

	mux := api.SetupRoutes(roomService, sseManager, m.Handler(), client.Alive)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      web.WrapMuxWithMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("starting roomswitch server", "port", cfg.Port)
		serverErrors <- server.ListenAndServe()
	}()

	if room != "" {
		go func() {
			if _, err := roomService.JoinByID(ctx, room); err != nil {
				logger.Error("failed to join room from command line", "room", room.String(), "error", err)
			}
		}()
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("error starting server: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := roomService.Leave(shutdownCtx); err != nil && !errors.Is(err, models.ErrInvalidState) {
			logger.Warn("failed to leave room on shutdown", "error", err)
		}

		// Close SSE connections before the server waits for them
		sseManager.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("error shutting down server: %w", err)
		}

		logger.Info("server gracefully stopped")
		return nil
	}
}
