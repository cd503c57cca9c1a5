// @title Tutor 后端 API
// @version 1.0
// @description 苏格拉底式 AI 导师的后端服务。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"fmt"
	"os"

	"tutor_backend/internal/app"
	"tutor_backend/internal/config"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
)

type options struct {
	configDir   string
	migrate     bool
	migrateOnly bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configDir, "config", "configs", "配置文件 config.yaml 所在目录")
	flag.BoolVar(&o.migrate, "migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.BoolVar(&o.migrateOnly, "migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	cfg, err := config.LoadConfig(opts.configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config from %s: %v\n", opts.configDir, err)
		os.Exit(1)
	}
	cfg.ForceMigrate = opts.migrate || opts.migrateOnly
	cfg.MigrateOnly = opts.migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if opts.migrateOnly {
		logger.Log.Info("Database migration finished, exiting", zap.String("driver", cfg.Database.Driver))
		return
	}

	application.Run()
}
