package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"magpie/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture service",
	Long:  `Start the Magpie capture service with the specified configuration.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()

	// Server flags
	flags.StringP("host", "H", "127.0.0.1", "server host")
	flags.IntP("port", "p", 7090, "server port")
	flags.String("mode", "release", "server mode (debug/release/test)")

	// Capture flags
	flags.Bool("capture", true, "enable capture on startup")
	flags.Duration("throttle", time.Second, "throttle window between extraction passes")

	// KV flags
	flags.String("kv-backend", "auto", "kv backend (auto/redis/mongo/bolt)")
	flags.String("bolt-path", "./data/magpie.bolt", "bbolt database path")

	// Log flags
	flags.String("log-level", "info", "log level (trace/debug/info/warn/error/fatal)")
	flags.String("log-format", "console", "log format (json/console)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.host", flags.Lookup("host"))
	_ = viper.BindPFlag("server.port", flags.Lookup("port"))
	_ = viper.BindPFlag("server.mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("capture.enabled", flags.Lookup("capture"))
	_ = viper.BindPFlag("capture.throttle_delay", flags.Lookup("throttle"))
	_ = viper.BindPFlag("kv.backend", flags.Lookup("kv-backend"))
	_ = viper.BindPFlag("kv.bolt.path", flags.Lookup("bolt-path"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	// Validate config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Create server
	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().
		Str("addr", addr).
		Str("mode", cfg.Server.Mode).
		Msg("starting server")

	return srv.Run(ctx, addr)
}
