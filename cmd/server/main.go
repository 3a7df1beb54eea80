package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bookstore/internal/logging"
	"github.com/dmitrijs2005/bookstore/internal/server"
	"github.com/dmitrijs2005/bookstore/internal/server/config"
	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:], ".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	gin.SetMode(gin.ReleaseMode)
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}
	err = app.Run(ctx)
	_ = app.Close()
	if err != nil {
		os.Exit(1)
	}
}
