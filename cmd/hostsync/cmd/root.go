// Package cmd provides CLI commands for hostsync.
package cmd

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Global flags
var (
	cfgFile  string // Config file path
	logLevel string // Log level
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hostsync",
	Short: "主机同步工具 - 将 CMDB 导出文件同步到 Checkmk",
	Long: `主机同步工具读取 CMDB 导出的主机清单文件（CSV、JSON、BVQ、XLSX），
与 Checkmk 站点中的现有主机进行对比，并自动创建、修改、移动和删除主机。

数据流: CMDB 导出文件 → 本工具 → Checkmk REST/Web API

主要功能:
  - 支持 CSV、JSON、BVQ、XLSX 多种导入格式
  - 基于 locked_by 属性的所有权管理，不触碰其他来源的主机
  - 按标签模板自动派生目标文件夹并按需创建
  - 主机标签、属性、标签组（tag）和 IP 地址的增量同步
  - 新建主机后自动触发服务发现并激活变更`,
	Version: Version,
	// Run displays help when called without any subcommands
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// init initializes the root command and its flags.
func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")

	// Customize version template
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// GetConfigFile returns the config file path from command line flag.
func GetConfigFile() string {
	return cfgFile
}

// GetLogLevel returns the log level from command line flag.
func GetLogLevel() string {
	return logLevel
}

// GetVersionInfo returns formatted version information.
func GetVersionInfo() string {
	return Version + "\n" +
		"Build Time: " + BuildTime + "\n" +
		"Git Commit: " + GitCommit + "\n" +
		"Go Version: " + runtime.Version() + "\n" +
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH
}
