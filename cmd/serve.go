package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/krishangoyal12/Video-Chat-Application/internal/logging"
	"github.com/krishangoyal12/Video-Chat-Application/internal/server"
	"github.com/krishangoyal12/Video-Chat-Application/internal/signaling"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the room signaling server. Participants connect to /ws, the health
endpoint is /health.

Examples:
  videochat serve
  videochat serve --addr :9000 --allowed-origin https://meet.example.com
  VIDEOCHAT_SERVER_ADDR=:9000 videochat serve`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "", "Listen address (default :8000)")
	flags.StringSlice("allowed-origin", nil, "Allowed websocket origin, repeatable; none allows all")
	flags.Bool("trust-proxy", false, "Use X-Forwarded-For as the client address (only behind a proxy that sets it)")
	flags.Bool("ghost-eviction", true, "Evict stale connections of a reconnecting client")

	bindFlag(serveCmd, "server.addr", "addr")
	bindFlag(serveCmd, "server.allowed_origins", "allowed-origin")
	bindFlag(serveCmd, "server.trust_proxy", "trust-proxy")
	bindFlag(serveCmd, "server.ghost_eviction", "ghost-eviction")

	rootCmd.AddCommand(serveCmd)
}

func hubOptions() signaling.Options {
	opts := signaling.DefaultOptions()
	opts.GhostEviction = cfg.Server.GhostEviction
	if cfg.Server.StaleAfter > 0 {
		opts.StaleAfter = cfg.Server.StaleAfter
	}
	opts.ReapInterval = cfg.Server.ReapInterval
	if cfg.Server.PingPeriod > 0 {
		opts.PingPeriod = cfg.Server.PingPeriod
	}
	if cfg.Server.PongWait > 0 {
		opts.PongWait = cfg.Server.PongWait
	}
	if cfg.Server.SendBuffer > 0 {
		opts.SendBuffer = cfg.Server.SendBuffer
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.Init(logging.Options{
		Level:   cfg.Log.Level,
		Default: logrus.InfoLevel,
		File:    cfg.Log.File,
		Console: true,
	})
	log := logger.WithField("component", "server")

	hub := signaling.NewHub(hubOptions(), logger.WithField("component", "hub"))
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.Routes(hub, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			TrustProxy:     cfg.Server.TrustProxy,
			Logger:         logger.WithField("component", "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":            cfg.Server.Addr,
			"allowed_origins": cfg.Server.AllowedOrigins,
			"ghost_eviction":  cfg.Server.GhostEviction,
		}).Info("signaling server listening")

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		grace := cfg.Server.ShutdownGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
