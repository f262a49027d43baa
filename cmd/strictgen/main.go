// =============================================================================
// strictgen 主入口
// =============================================================================
// 结构化生成服务入口：HTTP API、一次性命令行生成、健康检查
//
// 使用方法:
//
//	strictgen serve                                  # 启动服务
//	strictgen serve --config config.yaml             # 指定配置文件
//	strictgen generate --vibe "smoky, late night"    # 生成一份配方并退出
//	strictgen version                                # 显示版本信息
//	strictgen health --addr http://localhost:8080    # 健康检查
//
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/strictgen/api"
	"github.com/BaSui01/strictgen/config"
	"github.com/BaSui01/strictgen/internal/server"
	"github.com/BaSui01/strictgen/recipe"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// .env 文件可选，缺失时只使用进程环境变量
	_ = godotenv.Load()

	var code int
	switch os.Args[1] {
	case "serve":
		code = runServe(os.Args[2:])
	case "generate":
		code = runGenerate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		code = runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		code = 1
	}
	os.Exit(code)
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	certFile := fs.String("tls-cert", "", "TLS certificate file (enables HTTPS)")
	keyFile := fs.String("tls-key", "", "TLS private key file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting strictgen",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return 1
	}

	mgr := server.NewManager(app.router(), server.FromConfig(cfg.Server), logger)
	mgr.OnShutdown("app", app.Close)

	if *certFile != "" {
		err = mgr.StartTLS(*certFile, *keyFile)
	} else {
		err = mgr.Start()
	}
	if err != nil {
		logger.Error("failed to start server", zap.Error(err))
		_ = app.Close(context.Background())
		return 1
	}

	if err := mgr.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return 1
	}
	logger.Info("strictgen stopped")
	return 0
}

// =============================================================================
// 🍸 generate 命令
// =============================================================================

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	vibe := fs.String("vibe", "", "Free-form description of the desired drink")
	asJSON := fs.Bool("json", false, "Print the full outcome as JSON")
	_ = fs.Parse(args)

	if strings.TrimSpace(*vibe) == "" {
		*vibe = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*vibe) == "" {
		fmt.Fprintln(os.Stderr, "generate: --vibe is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize: %v\n", err)
		return 1
	}
	defer app.Close(context.WithoutCancel(ctx))

	outcome := app.engine.ProduceArtifact(ctx, *vibe)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(api.NewArtifactResponse(outcome))
	}

	if !outcome.Succeeded() {
		fmt.Fprintf(os.Stderr, "generation %s after %d attempt(s)\n", outcome.Status, outcome.Attempts)
		for _, d := range outcome.Diagnostics() {
			fmt.Fprintf(os.Stderr, "  - %s\n", d)
		}
		return 1
	}

	if !*asJSON {
		r, err := recipe.Decode(outcome.Value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode recipe: %v\n", err)
			return 1
		}
		fmt.Println(r.String())
	}
	return 0
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(*addr, "/") + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Println("OK")
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("strictgen %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`strictgen - structured generation contract engine

Usage:
  strictgen <command> [options]

Commands:
  serve      Start the HTTP API server
  generate   Produce one recipe from a vibe and exit
  version    Show version information
  health     Check server health
  help       Show this help message

Options for 'serve':
  --config <path>     Path to configuration file (YAML)
  --tls-cert <file>   Serve HTTPS with this certificate
  --tls-key <file>    Private key for --tls-cert

Options for 'generate':
  --config <path>     Path to configuration file (YAML)
  --vibe <text>       Description of the desired drink
  --json              Print the full outcome as JSON

Environment variables use the STRICTGEN_ prefix, e.g. STRICTGEN_BACKEND_API_KEY.
A .env file in the working directory is loaded when present.

Examples:
  strictgen serve --config /etc/strictgen/config.yaml
  strictgen generate --vibe "something smoky for a rainy night"
  strictgen health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
