package config

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Operator struct {
		ListenAddr string `mapstructure:"listen_addr"`
		// MaxSigners caps registrations; 0 means unbounded.
		MaxSigners int `mapstructure:"max_signers"`
	} `mapstructure:"operator"`

	Signer struct {
		ListenAddr    string `mapstructure:"listen_addr"`
		AdvertiseAddr string `mapstructure:"advertise_addr"`
		OperatorURL   string `mapstructure:"operator_url"`
		// SecretKey is an optional hex-encoded 32-byte secret. When empty the
		// signer generates a fresh keypair at startup.
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"signer"`

	Peer struct {
		ListenAddr string   `mapstructure:"listen_addr"`
		Peers      []string `mapstructure:"peers"`
		Signers    int      `mapstructure:"signers"`
		Message    string   `mapstructure:"message"`
		SecretKey  string   `mapstructure:"secret_key"`
		// RetryDelay is the fixed delay in seconds between outbound
		// connection attempts to an unreachable peer.
		RetryDelay int `mapstructure:"retry_delay"`
	} `mapstructure:"peer"`
}
