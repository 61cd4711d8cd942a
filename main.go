package main

import (
	"go.uber.org/zap"

	"github.com/villageone/api/config"
	"github.com/villageone/api/routes"
	"github.com/villageone/api/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	repo, err := config.OpenStore(cfg, utils.Logger.Named("store"))
	if err != nil {
		utils.Logger.Fatal("open store failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	r := routes.SetupRouter(repo, utils.Logger)

	utils.Sugar.Infof("Starting server on port %s (driver=%s, redis=%t)", cfg.AppPort, cfg.DBDriver, cfg.RedisEnabled)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
