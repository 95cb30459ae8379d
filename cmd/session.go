package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krishangoyal12/Video-Chat-Application/internal/call"
	"github.com/krishangoyal12/Video-Chat-Application/internal/config"
	"github.com/krishangoyal12/Video-Chat-Application/internal/logging"
	"github.com/krishangoyal12/Video-Chat-Application/internal/media"
	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
	"github.com/krishangoyal12/Video-Chat-Application/internal/transport"
	"github.com/krishangoyal12/Video-Chat-Application/internal/ui"
	"github.com/krishangoyal12/Video-Chat-Application/internal/version"
)

const hangupTimeout = 5 * time.Second

func iceOptions(c *config.Config) media.ICEOptions {
	return media.ICEOptions{
		STUN:              c.ICE.STUN,
		TURN:              c.ICE.TURN,
		TURNUser:          c.ICE.TURNUser,
		TURNPass:          c.ICE.TURNPass,
		ForceRelay:        c.ICE.ForceRelay,
		AutoRelay:         c.ICE.AutoRelay,
		CandidatePoolSize: uint8(c.ICE.CandidatePoolSize),
		PLIInterval:       c.ICE.PLIInterval,
	}
}

func negotiation(c *config.Config) mesh.Config {
	return mesh.Config{
		RecoveryTimeout:    c.Negotiation.RecoveryTimeout,
		RecreateDelay:      c.Negotiation.RecreateDelay,
		NegotiationTimeout: c.Negotiation.NegotiationTimeout,
	}
}

func transportOptions(c *config.Config, codec protocol.Codec, logger *logrus.Entry) transport.Options {
	return transport.Options{
		URL:               c.Client.URL,
		Codec:             codec,
		SessionToken:      uuid.NewString(),
		UserAgent:         "videochat/" + version.Version,
		ReconnectAttempts: c.Client.ReconnectAttempts,
		ReconnectDelay:    c.Client.ReconnectDelay,
		MaxReconnectDelay: c.Client.MaxReconnectDelay,
		DialTimeout:       c.Client.DialTimeout,
		Logger:            logger,
	}
}

// joinRoom runs one participant in roomID until the user hangs up, the
// process is interrupted or the server stays unreachable.
func joinRoom(cmd *cobra.Command, roomID string) error {
	headless, _ := cmd.Flags().GetBool("headless")

	logger := logging.Init(logging.Options{
		Level:   cfg.Log.Level,
		Default: logrus.ErrorLevel,
		File:    cfg.Log.File,
		Console: headless,
	})
	if headless && cfg.Log.Level == "" {
		logger.SetLevel(logrus.InfoLevel)
	}
	log := logger.WithFields(logrus.Fields{"component": "cli", "room": roomID})

	codec, err := protocol.CodecByName(cfg.Client.Codec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	local, err := media.Capture(ctx, media.CaptureOptions{
		VideoFile: cfg.Media.VideoFile,
		AudioFile: cfg.Media.AudioFile,
		Logger:    logger.WithField("component", "capture"),
	})
	if err != nil {
		return err
	}

	engine, err := media.NewEngine(iceOptions(cfg), logger.WithField("component", "media"))
	if err != nil {
		local.Stop()
		return err
	}

	c := call.New(call.Options{
		RoomID:      roomID,
		Transport:   transport.NewClient(transportOptions(cfg, codec, logger.WithField("component", "transport"))),
		Codec:       codec,
		Factory:     engine.NewSession,
		Media:       local,
		Negotiation: negotiation(cfg),
		Logger:      log,
	})

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = c.Run(ctx)
		close(done)
	}()

	if headless {
		log.Info("joined, press Ctrl+C to hang up")
		select {
		case <-ctx.Done():
		case <-done:
		}
	} else {
		view := ui.NewCallView(c.Snapshot, cancel)
		go func() {
			select {
			case <-done:
				view.Quit()
			case <-ctx.Done():
			}
		}()
		if err := view.Run(ctx); err != nil {
			log.WithError(err).Warn("call view")
		}
	}

	hangupCtx, cancelHangup := context.WithTimeout(context.Background(), hangupTimeout)
	defer cancelHangup()
	if err := c.Hangup(hangupCtx); err != nil {
		log.WithError(err).Warn("hangup")
	}
	cancel()
	<-done

	fmt.Println()
	ui.RenderSummary(c.Summary())

	if errors.Is(runErr, transport.ErrReconnectExhausted) {
		return fmt.Errorf("lost connection to %s: %w", cfg.Client.URL, runErr)
	}
	return runErr
}
