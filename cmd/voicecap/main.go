package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"voicecap/internal/bootstrap"
	"voicecap/internal/config"
	"voicecap/internal/domain"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "voicecap",
		Short:        "Capture microphone audio and stream it to a voice-processing backend",
		RunE:         run,
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	printBanner()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging)

	services := bootstrap.Build(cfg, &consoleSink{out: os.Stdout}, log)

	if cfg.Metrics.Enabled {
		go serveMetrics(services, log)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Session.Start(ctx); err != nil {
		return err
	}
	log.Info("capture_running", "hint", "press ctrl-c to stop")

	<-ctx.Done()
	services.Session.Stop()
	return nil
}

func serveMetrics(services bootstrap.Services, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              services.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("metrics_listening", "addr", services.Config.Metrics.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics_server", "error", err)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func printBanner() {
	tpl := "{{ .Title \"voicecap\" \"\" 0 }}\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// consoleSink renders session state on the terminal: phase and
// transcript as lines, volume as a redrawn bar.
type consoleSink struct {
	out *os.File
}

func (c *consoleSink) PhaseChanged(phase domain.Phase) {
	fmt.Fprintf(c.out, "\r\033[K[%s]\n", phase)
}

func (c *consoleSink) TranscriptChanged(text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(c.out, "\r\033[K%s\n", text)
}

func (c *consoleSink) VolumeChanged(level float64) {
	const width = 30
	filled := int(level * width)
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	fmt.Fprintf(c.out, "\rmic [%s] %4.0f%%", bar, level*100)
}

func (c *consoleSink) ConnectionChanged(connected bool) {
	if connected {
		fmt.Fprintf(c.out, "\r\033[Kbackend connected\n")
	} else {
		fmt.Fprintf(c.out, "\r\033[Kbackend offline\n")
	}
}
