package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/checarsner/crosspostit/internal/config"
	"github.com/checarsner/crosspostit/internal/core"
	"github.com/checarsner/crosspostit/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 退出码
const (
	exitOK          = 0
	exitUsage       = 1
	exitNoPages     = 2
	exitInterrupted = 130
)

// errInterrupted 在获取到任何页面之前被中断
var errInterrupted = errors.New("采集在获取任何页面之前被中断")

// 命令行参数
var (
	// 全局参数
	configFile    string
	headersConfig string
	logLevel      string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 采集参数
	username        string
	userFile        string
	maxPages        int
	outputDir       string
	mode            string
	downloadImages  bool
	headless        bool
	postgresDSN     string
	batchDelay      time.Duration
	continueOnError bool
)

// appConfig 在PersistentPreRunE中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "crosspostit",
	Short: "二手市场用户主页商品采集工具",
	Long: `crosspostit - OfferUp用户主页商品采集工具

逐页采集指定用户的在售商品,补全详情页描述,输出为CSV/JSON,
可选下载商品图片并写入PostgreSQL。

示例:
  # 采集单个用户,最多3页
  crosspostit -u some_seller -p 3

  # 同时下载图片
  crosspostit -u some_seller --images

  # 批量采集 (每行一个用户名)
  crosspostit -f sellers.txt

  # 自定义请求头
  crosspostit -u some_seller -H "Cookie: ou_session=..." -H "Referer: https://offerup.com/"

  # 验证请求头配置
  crosspostit --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		overrides := core.CLIOverrides{
			MaxPages:    maxPages,
			OutputDir:   outputDir,
			Mode:        mode,
			LogLevel:    logLevel,
			PostgresDSN: postgresDSN,
		}
		flags := cmd.Flags()
		if flags.Changed("images") {
			overrides.Images = &downloadImages
		}
		if flags.Changed("headless") {
			overrides.Headless = &headless
		}
		cfg.MergeCLIFlags(overrides)
		if flags.Changed("batch-delay") {
			cfg.Batch.Delay = batchDelay
		}
		if flags.Changed("continue-on-error") {
			cfg.Batch.ContinueOnError = continueOnError
		}

		if err := utils.InitLogger(cfg.Logging); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := core.NewHeaderManager(headersConfig, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return runValidateConfig(headerManager)
		}

		// 如果没有提供任何参数,显示帮助信息
		if username == "" && userFile == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(username, userFile, appConfig); err != nil {
			return err
		}

		if _, err := headerManager.GetHeaders(); err != nil {
			return fmt.Errorf("HTTP头部配置无效: %w", err)
		}

		app, err := newApp(cmd.Context(), appConfig, headerManager)
		if err != nil {
			return err
		}
		defer app.Close()

		if userFile != "" {
			usernames, err := utils.ReadUsernamesFromFile(userFile)
			if err != nil {
				return err
			}
			return app.runBatch(cmd.Context(), usernames)
		}
		return app.runSingle(cmd.Context(), username)
	},
}

// runValidateConfig 验证并打印请求头配置(敏感值脱敏)
func runValidateConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不加载配置,不创建日志目录
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crosspostit %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认搜索 ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&headersConfig, "headers-config", config.DefaultConfigFile, "HTTP头部配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置")

	// 采集参数
	rootCmd.Flags().StringVarP(&username, "user", "u", "", "目标用户名 (必需,除非使用 --user-file)")
	rootCmd.Flags().StringVarP(&userFile, "user-file", "f", "", "包含用户名列表的文件路径")
	rootCmd.Flags().IntVarP(&maxPages, "max-pages", "p", 0, "最大页数 (默认读取配置,配置默认5)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认 output)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "抓取模式 (static|browser)")
	rootCmd.Flags().BoolVar(&downloadImages, "images", false, "下载商品图片")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "浏览器模式下使用无头浏览器")
	rootCmd.Flags().StringVar(&postgresDSN, "pg-dsn", "", "PostgreSQL连接串,指定后写入数据库")

	// 批量处理参数
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 5*time.Second, "批量模式下用户之间的等待时间")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理下一个用户")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
	}
	os.Exit(code)
}

// exitCode 错误到退出码的映射
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted):
		return exitInterrupted
	case errors.Is(err, core.ErrNoPagesRetrieved):
		return exitNoPages
	default:
		return exitUsage
	}
}
