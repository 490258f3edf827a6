package main

import (
	"context"
	"encoding/hex"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/api"
	"github.com/f3rmion/musig2-node/pkg/client"
	"github.com/f3rmion/musig2-node/pkg/config"
	"github.com/f3rmion/musig2-node/pkg/musig"
	"github.com/f3rmion/musig2-node/pkg/signer"
)

func main() {

	cfg, err := config.ReadConfigFromFile("signer-config")
	if err != nil {
		panic(err)
	}
	log.SetLevelStr(cfg.LogLevel)

	key, err := loadKey(cfg)
	if err != nil {
		log.Fatal(err)
	}

	s := signer.New(key)

	oc := client.NewOperatorClient(cfg.Signer.OperatorURL)
	index, err := oc.Register(context.Background(), cfg.Signer.AdvertiseAddr, s.PublicKey())
	if err != nil {
		log.Fatal(err)
	}

	log.Infow("Registered with operator",
		"operator", cfg.Signer.OperatorURL,
		"index", index,
		"public_key", hex.EncodeToString(s.PublicKey()),
	)

	server := api.NewServer(cfg.Signer.ListenAddr, s.Router())
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

// loadKey restores the configured secret key, or generates a fresh keypair
// when none is configured.
func loadKey(cfg *config.Config) (*musig.KeyPair, error) {
	if cfg.Signer.SecretKey != "" {
		return musig.KeyPairFromHex(cfg.Signer.SecretKey)
	}
	return musig.GenerateKeyPair()
}
