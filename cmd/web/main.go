package main

import (
	"log"

	"github.com/kataras/iris/v12"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/logging"
	"github.com/hasan-abir/commerceproject/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Init(false)

	deps := server.BuildDeps(cfg)

	app := iris.New()
	server.RegisterRoutes(app, cfg, deps)

	addr := cfg.Server.Addr()
	log.Printf("web server listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run web server: %v", err)
	}
}
