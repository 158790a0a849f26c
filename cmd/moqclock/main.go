// moqclock publishes a wall clock as a Media over QUIC track and watches it
// from the subscriber side.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	quicgo_quicgo "github.com/quic-go/quic-go"
	"github.com/spf13/cobra"

	"github.com/quicmoq/moqt"
	"github.com/quicmoq/moqt/internal/clock"
	"github.com/quicmoq/moqt/telemetry"
	"github.com/quicmoq/moqt/webtransport/webtransportgo"
)

func main() {
	root := &cobra.Command{
		Use:   "moqclock",
		Short: "Clock publisher and watcher over Media over QUIC Transport",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newWatchCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Publish the clock track to every connected session",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := clock.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().String("config", "", "Path to a YAML config file")
	return cmd
}

func runServe(cfg *clock.Config) error {
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var metrics *telemetry.Metrics
	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "moqclock")
		if err != nil {
			return fmt.Errorf("telemetry setup: %w", err)
		}
		defer shutdown(context.Background())
		if metrics, err = telemetry.NewMetricsFromGlobal(); err != nil {
			return fmt.Errorf("telemetry instruments: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}

	trackName := moqt.NewFullTrackName(cfg.Namespace, cfg.Track)
	broadcaster := clock.NewBroadcaster(cfg.Interval, logger)
	go broadcaster.Run(ctx)

	server := &webtransportgo.Server{
		Addr: cfg.Listen,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h3"},
		},
		QUICConfig: &quicgo_quicgo.Config{
			EnableDatagrams: true,
		},
		Path: cfg.Path,
		Handler: func(transport *webtransportgo.Session, r *http.Request) {
			id := uuid.NewString()
			sessionLogger := logger.With("session_id", id)

			registry := moqt.NewTrackRegistry()
			queue := moqt.NewOutgoingQueue(trackName, moqt.ForwardingPreferenceSubgroup)
			if err := registry.Add(queue); err != nil {
				sessionLogger.Error("failed to register clock track", "error", err)
				return
			}

			moqt.NewSession(transport, moqt.SessionParameters{
				Perspective:       moqt.PerspectiveServer,
				Role:              moqt.RolePublisher,
				UsingWebTransport: true,
				MaxSubscribeID:    cfg.MaxSubscribes,
				Logger:            sessionLogger,
				Metrics:           metrics,
			}, moqt.SessionCallbacks{
				OnSessionEstablished: func() {
					broadcaster.Attach(id, transport.Post, queue)
				},
				OnSessionTerminated: func(err error) {
					broadcaster.Detach(id)
					if err != nil {
						sessionLogger.Warn("session ended", "error", err)
					}
				},
			}, registry)
		},
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	logger.Info("serving clock",
		"addr", cfg.Listen,
		"path", cfg.Path,
		"track", trackName.String(),
		"interval", cfg.Interval.String())
	if err := server.ListenAndServe(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to a clock track and print the received objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			namespace, _ := cmd.Flags().GetString("namespace")
			track, _ := cmd.Flags().GetString("track")
			insecure, _ := cmd.Flags().GetBool("insecure")
			level, _ := cmd.Flags().GetString("log-level")
			return runWatch(url, namespace, track, insecure, level)
		},
	}
	cmd.Flags().String("url", "https://localhost:4443/clock", "WebTransport URL of the clock server")
	cmd.Flags().String("namespace", "clock", "Track namespace")
	cmd.Flags().String("track", "second", "Track name")
	cmd.Flags().Bool("insecure", false, "Skip TLS certificate verification")
	cmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	return cmd
}

func runWatch(url, namespace, track string, insecure bool, level string) error {
	logger := newLogger(level, "text")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_, transport, err := webtransportgo.Dial(ctx, url, nil, &tls.Config{
		InsecureSkipVerify: insecure,
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	trackName := moqt.NewFullTrackName(namespace, track)
	printer := clock.NewPrinter(os.Stdout, logger)

	var sess *moqt.Session
	sess = moqt.NewSession(transport, moqt.SessionParameters{
		Perspective:       moqt.PerspectiveClient,
		Role:              moqt.RoleSubscriber,
		UsingWebTransport: true,
		Logger:            logger,
	}, moqt.SessionCallbacks{
		OnSessionEstablished: func() {
			if err := sess.SubscribeCurrentGroup(trackName, printer); err != nil {
				logger.Error("subscribe failed", "error", err)
				sess.Close()
			}
		},
		OnSessionTerminated: func(err error) {
			if err != nil {
				logger.Warn("session ended", "error", err)
			}
		},
	}, nil)

	go func() {
		<-ctx.Done()
		transport.Post(sess.Close)
	}()

	transport.Serve()
	return nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
