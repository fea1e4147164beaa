package main

import (
	"flag"

	"github.com/utrading/utrading-limit-relayer/config"
	"github.com/utrading/utrading-limit-relayer/internal/dal"
	"github.com/utrading/utrading-limit-relayer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "cfg.toml", "config file path")
	outPath := flag.String("out", "internal/dal/query", "output path")
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		logger.Fatal().Err(err).Msg("load config failed")
	}

	conn, err := dal.Connect(config.Get().MySQL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect db failed")
	}
	defer dal.Close(conn)

	dal.GenExecute(*outPath, conn)
}
