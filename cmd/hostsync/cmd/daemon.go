// Package cmd implements CLI commands for hostsync.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hostsync/internal/config"
	"hostsync/internal/service"
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "以守护进程模式持续同步",
	Long: `以守护进程模式运行，按照各连接配置的 interval 周期性地执行同步，
直到收到 SIGINT 或 SIGTERM 信号。

每个连接独立调度，单次同步失败只记录日志，不会终止进程。

示例:
  hostsync daemon -c config.yaml`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// runDaemon schedules each enabled connection on its own interval
// until the process is signalled.
func runDaemon(cmd *cobra.Command, args []string) {
	printBanner()

	cfg, logger := loadConfigAndLogger()

	connections := selectConnections(cfg)
	if len(connections) == 0 {
		fmt.Println("❌ 没有可同步的连接")
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🔗 Checkmk 站点: %s (%s API)\n", cfg.Checkmk.Endpoint, cfg.Checkmk.API)
	fmt.Printf("⏳ 守护进程已启动，调度 %d 个连接\n", len(connections))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, conn := range connections {
		conn := conn
		group.Go(func() error {
			syncLoop(groupCtx, cfg, conn, logger)
			return nil
		})
	}
	group.Wait()

	fmt.Println("✅ 守护进程已退出")
}

// syncLoop runs one connection on its configured interval. The first
// cycle starts immediately.
func syncLoop(ctx context.Context, cfg *config.Config, conn config.ConnectionConfig, logger zerolog.Logger) {
	syncer := service.NewSyncer(cfg, conn, logger)
	loopLogger := logger.With().Str("connection", conn.ID).Logger()

	loopLogger.Info().Dur("interval", conn.Interval).Msg("scheduling connection")

	ticker := time.NewTicker(conn.Interval)
	defer ticker.Stop()

	for {
		runOnce(ctx, syncer, conn.Interval, loopLogger)

		select {
		case <-ctx.Done():
			loopLogger.Info().Msg("stopping connection")
			return
		case <-ticker.C:
		}
	}
}

// runOnce executes a single cycle with the interval as its deadline.
// Failures are logged; the next tick retries.
func runOnce(ctx context.Context, syncer *service.Syncer, interval time.Duration, logger zerolog.Logger) {
	cycleCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	started := time.Now()
	result, err := syncer.Run(cycleCtx)
	if err != nil {
		logger.Error().Err(err).Msg("sync cycle failed")
		return
	}

	logger.Info().
		Dur("duration", time.Since(started)).
		Str("summary", result.Summary()).
		Msg("sync cycle finished")
}
