package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"ZKPong/internal/bootstrap"
	"ZKPong/internal/config"
	"ZKPong/internal/transcript"
	"ZKPong/pkg/logger"
)

// main 是 zkpong 命令行工具的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zkpong: %v\n", err)
		os.Exit(1)
	}
}

// env 保存全局参数解析后的运行环境，由 Before 钩子填充。
type env struct {
	cfg *config.Config
}

func newApp(stdout io.Writer) *cli.App {
	e := &env{}
	return &cli.App{
		Name:   "zkpong",
		Usage:  "对局、录制并证明一局 pong",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (json/yaml/toml)",
				EnvVars: []string{"ZKPONG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "覆盖配置中的日志级别",
			},
		},
		Before: e.load,
		After: func(*cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			e.playCommand(),
			e.simulateCommand(),
			e.proveCommand(),
			e.submitCommand(),
			e.plotCommand(),
			e.tokenCommand(),
			e.verifierCommand(),
		},
	}
}

// load 读取配置并初始化日志。未指定配置文件时使用默认值，日志输出到 stderr 以免污染 JSON 输出。
func (e *env) load(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		candidate := filepath.Join("configs", "zkpong.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path == "" {
		e.cfg = config.Default(".")
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		e.cfg = cfg
	}

	if level := c.String("log-level"); level != "" {
		e.cfg.Logging.Level = level
	}
	for i, out := range e.cfg.Logging.Outputs {
		if out == "stdout" {
			e.cfg.Logging.Outputs[i] = "stderr"
		}
	}
	return bootstrap.InitLogger(e.cfg)
}

// output 返回 --out 指定的文件，未指定时写到应用的标准输出。
func output(c *cli.Context) (io.Writer, func() error, error) {
	path := c.String("out")
	if path == "" || path == "-" {
		return c.App.Writer, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeJSON(c *cli.Context, v any) error {
	w, closeFn, err := output(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

// readTranscript 读取 JSON 数组形式的转录，也接受完整的证明输入文档。
func readTranscript(path string) ([]transcript.Entry, error) {
	if path == "" {
		return nil, errors.New("缺少转录文件路径")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取转录失败: %w", err)
	}

	var entries []transcript.Entry
	if err := json.Unmarshal(content, &entries); err == nil {
		return entries, nil
	}
	var doc struct {
		GameLog []transcript.Entry `json:"game_log"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("解析转录失败: %w", err)
	}
	return doc.GameLog, nil
}
