// Command assetreport runs one asset aggregation and prints it as YAML,
// or pushes it to the configured notifiers with -send.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"poa/internal/app"
	brcfg "poa/internal/config"
	"poa/internal/gateway/notifier"
	"poa/internal/logger"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("POA_CONFIG"), "YAML config file, empty for environment only")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	send := flag.Bool("send", false, "push the report to telegram/discord instead of printing")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	if err := brcfg.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("读取 %s 失败: %v", *envFile, err)
	}
	cfg, err := brcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	// 一次性任务只写 stderr，不落日志文件。
	logger.SetOutput(os.Stderr)
	cfg.Report.Enabled = false

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	report := a.Reporter().Report(ctx)
	if *send {
		if err := a.Notifier().Notify(ctx, notifier.AssetReport(report)); err != nil {
			log.Fatalf("推送失败: %v", err)
		}
		logger.Infof("资产报告已推送")
		return
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
	_ = enc.Close()
}
