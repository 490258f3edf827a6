package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.Nil(t, err)
	require.Nil(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestReadConfigFromFile(t *testing.T) {
	writeConfig(t, "test-config", `
log_level: info

operator:
  listen_addr: ":8000"
  max_signers: 5

signer:
  listen_addr: ":8001"
  advertise_addr: "http://localhost:8001"
  operator_url: "http://localhost:8000"
  secret_key: "aa"

peer:
  listen_addr: ":9000"
  peers:
    - "localhost:9001"
    - "localhost:9002"
  signers: 3
  message: "Hello, MuSig2!"
  retry_delay: 5
`)

	cfg, err := ReadConfigFromFile("test-config")
	require.Nil(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8000", cfg.Operator.ListenAddr)
	assert.Equal(t, 5, cfg.Operator.MaxSigners)
	assert.Equal(t, "http://localhost:8000", cfg.Signer.OperatorURL)
	assert.Equal(t, "aa", cfg.Signer.SecretKey)
	assert.Equal(t, []string{"localhost:9001", "localhost:9002"}, cfg.Peer.Peers)
	assert.Equal(t, 3, cfg.Peer.Signers)
	assert.Equal(t, "Hello, MuSig2!", cfg.Peer.Message)
	assert.Equal(t, 5, cfg.Peer.RetryDelay)
}

func TestReadConfigDefaults(t *testing.T) {
	writeConfig(t, "minimal-config", `
operator:
  listen_addr: ":8000"
`)

	cfg, err := ReadConfigFromFile("minimal-config")
	require.Nil(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Peer.RetryDelay)
	assert.Equal(t, 0, cfg.Operator.MaxSigners)
}

func TestReadConfigMissingFile(t *testing.T) {
	writeConfig(t, "unrelated", "log_level: info\n")

	_, err := ReadConfigFromFile("does-not-exist")
	assert.NotNil(t, err)
}
