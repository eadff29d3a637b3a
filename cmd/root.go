package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"magpie/internal/config"
	"magpie/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "magpie",
	Short: "Magpie - chat page capture service",
	Long: `Magpie observes a live chat web page through a browser-side shim,
extracts user/assistant message turns from DOM snapshots, deduplicates
them and persists conversations into a local key-value store.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.magpie")
	}

	// 环境变量设置
	viper.SetEnvPrefix("MAGPIE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 7090)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Capture
	viper.SetDefault("capture.enabled", true)
	viper.SetDefault("capture.throttle_delay", "1s")
	viper.SetDefault("capture.search_retry", "2s")

	// Extract
	viper.SetDefault("extract.min_assistant_len", 8)
	viper.SetDefault("extract.require_markers", false)
	viper.SetDefault("extract.continuation_len", 100)
	viper.SetDefault("extract.min_block_width", 50)
	viper.SetDefault("extract.min_block_height", 20)

	// KV
	viper.SetDefault("kv.backend", "auto")
	viper.SetDefault("kv.budget", 5*1024*1024)
	viper.SetDefault("kv.redis.addr", "localhost:6379")
	viper.SetDefault("kv.redis.db", 0)
	viper.SetDefault("kv.mongo.uri", "")
	viper.SetDefault("kv.mongo.database", "magpie")
	viper.SetDefault("kv.mongo.max_pool_size", 100)
	viper.SetDefault("kv.mongo.min_pool_size", 10)
	viper.SetDefault("kv.bolt.path", "./data/magpie.bolt")

	// Archive
	viper.SetDefault("archive.type", "none")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
