package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Address families supported by the payment schemes.
const (
	FamilyEVM    = "evm"
	FamilyLedger = "ledger"
)

// PaymentOption is one acceptable network+asset combination for paying.
type PaymentOption struct {
	Network  string `yaml:"network"`
	Family   string `yaml:"family"`
	Asset    string `yaml:"asset"`
	Decimals int    `yaml:"decimals"`
}

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Resource struct {
		Description string `yaml:"description"`
		MimeType    string `yaml:"mime_type"`
	} `yaml:"resource"`
	Payment struct {
		Price      string          `yaml:"price"`
		TTLMinutes int             `yaml:"ttl_minutes"`
		Options    []PaymentOption `yaml:"options"`
	} `yaml:"payment"`
	Provisioning struct {
		Endpoint       string `yaml:"endpoint"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"provisioning"`
	Facilitator struct {
		BaseURL        string `yaml:"base_url"`
		KeyID          string `yaml:"key_id"`
		PrivateKeyPEM  string `yaml:"private_key_pem"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		WSEndpoint     string `yaml:"ws_endpoint"`
	} `yaml:"facilitator"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Payment.TTLMinutes <= 0 {
		cfg.Payment.TTLMinutes = 10
	}
	if cfg.Provisioning.TimeoutSeconds <= 0 {
		cfg.Provisioning.TimeoutSeconds = 10
	}
	if cfg.Facilitator.TimeoutSeconds <= 0 {
		cfg.Facilitator.TimeoutSeconds = 30
	}
	if cfg.Resource.MimeType == "" {
		cfg.Resource.MimeType = "application/json"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Payment.Price == "" {
		return errors.New("payment.price is required")
	}
	if len(cfg.Payment.Options) == 0 {
		return errors.New("payment.options must list at least one option")
	}
	for i, opt := range cfg.Payment.Options {
		if opt.Network == "" || opt.Asset == "" {
			return fmt.Errorf("payment.options[%d] is incomplete", i)
		}
		if opt.Family != FamilyEVM && opt.Family != FamilyLedger {
			return fmt.Errorf("payment.options[%d] has unknown family %q", i, opt.Family)
		}
		if opt.Decimals <= 0 {
			return fmt.Errorf("payment.options[%d] has invalid decimals", i)
		}
	}
	if cfg.Provisioning.Endpoint == "" || cfg.Provisioning.APIKey == "" {
		return errors.New("provisioning config is incomplete")
	}
	if cfg.Facilitator.BaseURL == "" || cfg.Facilitator.KeyID == "" || cfg.Facilitator.PrivateKeyPEM == "" {
		return errors.New("facilitator config is incomplete")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("PAYMENT_PRICE"); v != "" {
		cfg.Payment.Price = v
	}
	if v := os.Getenv("PAYMENT_TTL_MINUTES"); v != "" {
		cfg.Payment.TTLMinutes = atoiOr(cfg.Payment.TTLMinutes, v)
	}
	if v := os.Getenv("PROVISIONING_ENDPOINT"); v != "" {
		cfg.Provisioning.Endpoint = v
	}
	if v := os.Getenv("PROVISIONING_API_KEY"); v != "" {
		cfg.Provisioning.APIKey = v
	}
	if v := os.Getenv("FACILITATOR_BASE_URL"); v != "" {
		cfg.Facilitator.BaseURL = v
	}
	if v := os.Getenv("FACILITATOR_KEY_ID"); v != "" {
		cfg.Facilitator.KeyID = v
	}
	if v := os.Getenv("FACILITATOR_PRIVATE_KEY"); v != "" {
		cfg.Facilitator.PrivateKeyPEM = v
	}
	if v := os.Getenv("FACILITATOR_WS_ENDPOINT"); v != "" {
		cfg.Facilitator.WSEndpoint = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
