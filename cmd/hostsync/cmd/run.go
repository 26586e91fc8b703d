// Package cmd implements CLI commands for hostsync.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hostsync/internal/config"
	"hostsync/internal/engine"
	"hostsync/internal/service"
)

// Command flags
var (
	connectionID string // Run a single connection only
	timeout      time.Duration
)

// maxConcurrentSyncs bounds how many connections sync at once.
const maxConcurrentSyncs = 4

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "执行一次主机同步",
	Long: `对所有已启用的连接执行一次完整的同步周期，包括：
1. 读取 CMDB 导出文件并解析主机清单
2. 从 Checkmk 获取现有主机、文件夹和标签组
3. 计算需要创建、修改、移动和删除的主机
4. 按需创建目标文件夹并等待其生效
5. 分块应用变更并激活

示例:
  # 对所有连接执行一次同步
  hostsync run -c config.yaml

  # 仅同步指定连接
  hostsync run -c config.yaml --connection cmdb-prod

  # 指定超时时间
  hostsync run -c config.yaml --timeout 10m`,
	Run: runSync,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&connectionID, "connection", "", "仅同步指定 ID 的连接")
	runCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "单次同步的超时时间")
}

// runSync executes one sync cycle for the selected connections.
func runSync(cmd *cobra.Command, args []string) {
	printBanner()

	cfg, logger := loadConfigAndLogger()

	connections := selectConnections(cfg)
	if len(connections) == 0 {
		fmt.Fprintf(os.Stderr, "❌ 没有可同步的连接\n")
		os.Exit(1)
	}

	fmt.Printf("🔗 Checkmk 站点: %s (%s API)\n", cfg.Checkmk.Endpoint, cfg.Checkmk.API)
	fmt.Printf("⏳ 开始同步 %d 个连接...\n\n", len(connections))

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	startTime := time.Now()

	results := make([]engine.ApplyResult, len(connections))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentSyncs)
	for i, conn := range connections {
		i, conn := i, conn
		group.Go(func() error {
			result, err := service.NewSyncer(cfg, conn, logger).Run(groupCtx)
			if err != nil {
				logger.Error().Err(err).Str("connection", conn.ID).Msg("sync cycle failed")
				return fmt.Errorf("connection %s: %w", conn.ID, err)
			}
			results[i] = result
			return nil
		})
	}

	err := group.Wait()

	for i, conn := range connections {
		fmt.Printf("   %s: %s\n", conn.ID, results[i].Summary())
	}
	fmt.Printf("\n⏱️  总耗时 %.1fs\n", time.Since(startTime).Seconds())

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 同步失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ 同步完成")
}

// loadConfigAndLogger loads the configuration and builds the logger.
// The command line --log-level overrides the config file setting.
func loadConfigAndLogger() (*config.Config, zerolog.Logger) {
	configPath := GetConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		// Use temporary console logger for config loading errors
		tmpLogger := setupLogger("error", "console")
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fmt.Fprintf(os.Stderr, "❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Logging.Level
	if GetLogLevel() != "info" { // If explicitly set via command line
		logLevel = GetLogLevel()
	}
	logger := setupLogger(logLevel, cfg.Logging.Format)
	logger.Debug().
		Str("config_path", configPath).
		Str("log_level", logLevel).
		Str("log_format", cfg.Logging.Format).
		Msg("configuration loaded successfully")

	return cfg, logger
}

// selectConnections returns the enabled connections, narrowed down to
// the --connection flag when set.
func selectConnections(cfg *config.Config) []config.ConnectionConfig {
	var connections []config.ConnectionConfig
	for _, conn := range cfg.Connections {
		if conn.Disabled {
			continue
		}
		if connectionID != "" && conn.ID != connectionID {
			continue
		}
		connections = append(connections, conn)
	}
	return connections
}

// setupLogger creates a zerolog logger with the specified level and format.
func setupLogger(level string, format string) zerolog.Logger {
	// Set log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Select output format based on configuration
	var output io.Writer
	if format == "json" {
		// JSON format - structured logging for log aggregation systems
		output = os.Stderr
	} else {
		// Console format - human-readable output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// printBanner prints the application banner.
func printBanner() {
	fmt.Printf("🔄 主机同步工具 %s\n", Version)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
