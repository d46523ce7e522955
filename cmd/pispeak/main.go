package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iabetor/pispeak/internal/config"
	"github.com/iabetor/pispeak/internal/logger"
	"github.com/iabetor/pispeak/internal/speaker"
)

func main() {
	configPath := flag.String("config", "configs/pispeak.yaml", "配置文件路径")
	text := flag.String("text", "", "合成单条文本后退出；为空时从 stdin 逐行读取")
	outPath := flag.String("out", "", "写入 WAV 文件而不是播放（需配合 -text）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *outPath != "" && *text == "" {
		fmt.Fprintln(os.Stderr, "-out 需要配合 -text 使用")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	playback := *outPath == ""
	sp, err := speaker.New(cfg, playback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer sp.Close()

	if *text != "" {
		if *outPath != "" {
			err = sp.SaveWAV(ctx, *text, *outPath)
		} else {
			err = sp.Say(ctx, *text)
		}
		if err != nil && err != context.Canceled {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	// 交互模式：逐行读取 stdin，每行一条语句
	logger.Infof("[main] pispeak 就绪，从 stdin 读取文本 (engine=%s)", sp.Engine().Name())
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sp.Say(ctx, line); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Errorf("[main] %v", err)
		}
	}

	logger.Infof("[main] pispeak 已停止")
}
