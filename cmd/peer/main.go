package main

import (
	"context"
	"encoding/hex"
	"os/signal"
	"syscall"
	"time"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/config"
	"github.com/f3rmion/musig2-node/pkg/gossip"
	"github.com/f3rmion/musig2-node/pkg/musig"
)

func main() {

	cfg, err := config.ReadConfigFromFile("peer-config")
	if err != nil {
		panic(err)
	}
	log.SetLevelStr(cfg.LogLevel)

	key, err := loadKey(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node := gossip.New(key,
		[]byte(cfg.Peer.Message),
		cfg.Peer.Signers,
		cfg.Peer.Peers,
		time.Duration(cfg.Peer.RetryDelay)*time.Second,
	)

	if err := node.Start(ctx, cfg.Peer.ListenAddr); err != nil {
		log.Fatal(err)
	}

	res, err := node.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Infow("Signing run complete",
		"message", cfg.Peer.Message,
		"aggregated_pubkey", hex.EncodeToString(res.AggregatedKey),
		"signature", hex.EncodeToString(res.Signature),
	)
}

func loadKey(cfg *config.Config) (*musig.KeyPair, error) {
	if cfg.Peer.SecretKey != "" {
		return musig.KeyPairFromHex(cfg.Peer.SecretKey)
	}
	return musig.GenerateKeyPair()
}
