// console connects a live multimodal session to the chart and room
// inspection dashboard. Capability invocations from the model drive
// the display; the dashboard sends text back into the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Robert54/live-api-web-console/internal/config"
	"github.com/Robert54/live-api-web-console/internal/log"
	"github.com/Robert54/live-api-web-console/pkg/bridge"
	"github.com/Robert54/live-api-web-console/pkg/live"
	"github.com/Robert54/live-api-web-console/pkg/surface"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "console: failed to load configuration:", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("console: invalid configuration", "error", err)
		os.Exit(1)
	}

	client, err := live.NewClient(live.ClientConfig{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
	})
	if err != nil {
		log.Error("console: client setup failed", "error", err)
		os.Exit(1)
	}

	srv := surface.NewServer(cfg.Addr, cfg.StaticDir)
	log.Tee(srv.LogHandler())

	b := bridge.New(client, bridge.Options{
		Model:             cfg.Model,
		Voice:             cfg.Voice,
		SystemInstruction: cfg.SystemInstruction,
		GoogleSearch:      cfg.GoogleSearch,
		AckDelay:          cfg.AckDelay,
		Renderer:          srv,
	})

	// Dashboard wiring
	b.OnStateChange(srv.SetState)
	b.OnInspectionChange(srv.SetInspection)
	b.OnError(srv.RecordError)
	srv.OnSay = client.SendText

	client.OnText(func(text string) {
		srv.AddLog("info", "model: "+text)
	})
	client.OnAudio(func(pcm []byte) {
		// No playback path; audio is only visible as traffic.
		log.Debug("console: audio chunk", "bytes", len(pcm))
	})
	client.OnInterrupted(func() {
		srv.AddLog("info", "model interrupted")
	})
	client.OnSetupComplete(func() {
		log.Info("console: session setup complete")
	})
	client.OnError(func(err error) {
		srv.RecordError(err)
	})

	if err := b.Start(); err != nil {
		log.Error("console: bridge start failed", "error", err)
		os.Exit(1)
	}

	srv.StartAsync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go maintainSession(ctx, client)

	<-ctx.Done()

	log.Info("console: shutting down")
	if err := b.Stop(); err != nil {
		log.Warn("console: bridge stop", "error", err)
	}
	if err := client.Close(); err != nil {
		log.Warn("console: session close", "error", err)
	}
	if err := srv.Shutdown(); err != nil {
		log.Warn("console: dashboard shutdown", "error", err)
	}
}

// maintainSession keeps the live connection up, redialing with a
// doubling backoff capped at 30 seconds. Session configuration is not
// repeated; the setup frame is rebuilt from the bridge's one-time
// configuration on every dial.
func maintainSession(ctx context.Context, client *live.Client) {
	closed := make(chan struct{}, 1)
	client.OnClose(func() {
		select {
		case closed <- struct{}{}:
		default:
		}
	})

	backoff := time.Second
	for ctx.Err() == nil {
		if err := client.Connect(ctx); err != nil {
			log.Warn("console: connect failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		log.Info("console: session connected")
		backoff = time.Second

		select {
		case <-ctx.Done():
			return
		case <-closed:
			log.Warn("console: session closed, reconnecting")
		}
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() (*config.Config, error) {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	addr := flag.String("addr", "", "Dashboard listen address")
	staticDir := flag.String("static", "", "Dashboard static asset directory")
	model := flag.String("model", "", "Generative model to select")
	voice := flag.String("voice", "", "Prebuilt voice for audio responses")
	endpoint := flag.String("endpoint", "", "Live service websocket URL (point at a simulator for local work)")
	ackDelay := flag.Duration("ack-delay", 0, "Delay before acknowledging invocations")
	noSearch := flag.Bool("no-search", false, "Disable the built-in search tool")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *voice != "" {
		cfg.Voice = *voice
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *ackDelay > 0 {
		cfg.AckDelay = *ackDelay
	}
	if *noSearch {
		cfg.GoogleSearch = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	return cfg, nil
}
