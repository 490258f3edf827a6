package main

import (
	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/api"
	"github.com/f3rmion/musig2-node/pkg/config"
	"github.com/f3rmion/musig2-node/pkg/operator"
)

func main() {

	cfg, err := config.ReadConfigFromFile("operator-config")
	if err != nil {
		panic(err)
	}
	log.SetLevelStr(cfg.LogLevel)

	op := operator.New(cfg.Operator.MaxSigners)

	server := api.NewServer(cfg.Operator.ListenAddr, op.Router())
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
