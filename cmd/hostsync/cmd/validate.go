// Package cmd implements CLI commands for hostsync.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hostsync/internal/config"
)

// Command flags
var showConfig bool

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "验证配置文件",
	Long:  "加载并验证配置文件，检查格式、必填字段、数值范围和业务逻辑约束。",
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&showConfig, "show", false, "验证通过后输出生效的完整配置")
}

// runValidate executes the validate command logic.
func runValidate(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()

	// Load and validate configuration (Load internally calls Validate)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 配置验证失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ 配置文件验证通过: %s\n", configPath)

	if showConfig {
		effective, err := yaml.Marshal(redacted(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ 配置序列化失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("---")
		fmt.Print(string(effective))
	}
}

// redacted returns a copy of the config safe for printing.
func redacted(cfg *config.Config) *config.Config {
	clone := *cfg
	if clone.Checkmk.Secret != "" {
		clone.Checkmk.Secret = "******"
	}
	return &clone
}
