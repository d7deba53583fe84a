package gateway

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"signalbridge/src/security"
)

type Config struct {
	BaseURL    string `envconfig:"EXCHANGE_BASE_URL" default:"https://api.testnet.perps.exchange"`
	WSURL      string `envconfig:"EXCHANGE_WS_URL" default:"wss://api.testnet.perps.exchange/ws"`
	MainWallet string `envconfig:"MAIN_WALLET" default:""`
	AgentKey   string `envconfig:"AGENT_KEY" default:""`
	// AgentKeyEncrypted takes precedence over AgentKey. It holds the signing
	// key encrypted with EXCHANGE_CREDENTIALS_KEY, for deployments that do
	// not want the raw key in the environment.
	AgentKeyEncrypted string        `envconfig:"AGENT_KEY_ENCRYPTED" default:""`
	UseTestnet        bool          `envconfig:"USE_TESTNET" default:"true"`
	CallTimeout       time.Duration `envconfig:"EXCHANGE_CALL_TIMEOUT" default:"15s"`
	// DefaultSlippagePct bounds the synthetic limit price used for market
	// orders (1 = 1%).
	DefaultSlippagePct float64 `envconfig:"EXCHANGE_SLIPPAGE_PCT" default:"1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}

	if config.AgentKeyEncrypted != "" {
		key, err := security.DecryptString(config.AgentKeyEncrypted)
		if err != nil {
			panic(fmt.Errorf("error decrypting AGENT_KEY_ENCRYPTED: %w", err))
		}
		config.AgentKey = key
	}

	return config
}
