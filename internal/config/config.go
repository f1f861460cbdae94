package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultAPIURL   = "http://127.0.0.1:3000"
	DefaultPort     = 3000
	DefaultLogLevel = "debug"
	DefaultNetwork  = "testnet"
	DefaultEpochs   = 3

	DefaultBlobStoreBackend = "walrus"
	DefaultPublisherURL     = "https://publisher.walrus-testnet.walrus.space"
	DefaultAggregatorURL    = "https://aggregator.walrus-testnet.walrus.space"
	DefaultLocalStoreDir    = ".mothrbox/blobs"

	DefaultMaxUploadBytes     int64 = 2 << 30 // 2 GiB
	DefaultMultipartMaxMemory int64 = 32 << 20
	DefaultUploadRate               = 30
	DefaultUploadBurst              = 5

	DefaultFallbackRate = 2.5

	configFileName           = ".mothrbox.toml"
	configDirEnvKey          = "MOTHRBOX_CONFIG_DIR"
	trustProjectConfigEnvKey = "MOTHRBOX_TRUST_PROJECT_CONFIG"
)

// BlobStoreConfig selects and configures the blob store backend.
type BlobStoreConfig struct {
	Backend        string `toml:"backend" validate:"oneof=walrus local"`
	PublisherURL   string `toml:"publisher_url" validate:"required_if=Backend walrus,omitempty,http_url"`
	AggregatorURL  string `toml:"aggregator_url" validate:"required_if=Backend walrus,omitempty,http_url"`
	LocalDir       string `toml:"local_dir" validate:"required_if=Backend local"`
	Deletable      bool   `toml:"deletable"`
	DefaultEpochs  int    `toml:"default_epochs" validate:"min=1,max=53"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"min=0"`
}

// LedgerConfig configures receipt minting. The custodial key is read from
// the environment only.
type LedgerConfig struct {
	Network   string `toml:"network" validate:"oneof=mainnet testnet devnet localnet"`
	RPCURL    string `toml:"rpc_url" validate:"omitempty,http_url"`
	PackageID string `toml:"package_id"`
	Module    string `toml:"module"`
	Function  string `toml:"function"`
	GasBudget uint64 `toml:"gas_budget"`
	SecretKey string `toml:"-"`
}

// PricingConfig configures cost quotes and the price oracle.
type PricingConfig struct {
	OracleURL           string  `toml:"oracle_url" validate:"omitempty,http_url"`
	CoinID              string  `toml:"coin_id"`
	Currency            string  `toml:"currency"`
	FallbackRate        float64 `toml:"fallback_rate" validate:"gt=0"`
	CacheTTLSeconds     int     `toml:"cache_ttl_seconds" validate:"min=0"`
	ShardCount          int     `toml:"shard_count" validate:"min=0"`
	StoragePricePerUnit uint64  `toml:"storage_price_per_unit"`
	WritePricePerUnit   uint64  `toml:"write_price_per_unit"`
	OracleDisabled      bool    `toml:"oracle_disabled"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenHost          string `toml:"listen_host"`
	Port                int    `toml:"port" validate:"min=1,max=65535"`
	CORSOrigin          string `toml:"cors_origin"`
	MaxUploadBytes      int64  `toml:"max_upload_bytes" validate:"min=0"`
	MultipartMaxMemory  int64  `toml:"multipart_max_memory" validate:"min=0"`
	UploadRatePerMinute int    `toml:"upload_rate_per_minute"`
	UploadBurst         int    `toml:"upload_burst" validate:"min=0"`
	APIToken            string `toml:"-"`
}

// Config defines runtime configuration for mothrbox.
type Config struct {
	APIURL                   string          `toml:"api_url" validate:"required,http_url"`
	LogLevel                 string          `toml:"log_level"`
	IndexURL                 string          `toml:"index_url"`
	OTelEndpoint             string          `toml:"otel_endpoint"`
	Server                   ServerConfig    `toml:"server"`
	BlobStore                BlobStoreConfig `toml:"blob_store"`
	Ledger                   LedgerConfig    `toml:"ledger"`
	Pricing                  PricingConfig   `toml:"pricing"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Server: ServerConfig{
			Port:                DefaultPort,
			MaxUploadBytes:      DefaultMaxUploadBytes,
			MultipartMaxMemory:  DefaultMultipartMaxMemory,
			UploadRatePerMinute: DefaultUploadRate,
			UploadBurst:         DefaultUploadBurst,
		},
		BlobStore: BlobStoreConfig{
			Backend:       DefaultBlobStoreBackend,
			PublisherURL:  DefaultPublisherURL,
			AggregatorURL: DefaultAggregatorURL,
			Deletable:     true,
			DefaultEpochs: DefaultEpochs,
		},
		Ledger: LedgerConfig{
			Network: DefaultNetwork,
		},
		Pricing: PricingConfig{
			FallbackRate: DefaultFallbackRate,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field formats and ranges.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"log_level",
	"index_url",
	"otel_endpoint",
	"server.listen_host",
	"server.port",
	"server.cors_origin",
	"server.max_upload_bytes",
	"server.upload_rate_per_minute",
	"blob_store.backend",
	"blob_store.publisher_url",
	"blob_store.aggregator_url",
	"blob_store.local_dir",
	"blob_store.default_epochs",
	"blob_store.deletable",
	"ledger.network",
	"ledger.rpc_url",
	"ledger.package_id",
	"pricing.oracle_url",
	"pricing.fallback_rate",
	"pricing.oracle_disabled",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "index_url":
		return c.IndexURL, nil
	case "otel_endpoint":
		return c.OTelEndpoint, nil
	case "server.listen_host":
		return c.Server.ListenHost, nil
	case "server.port":
		return strconv.Itoa(c.Server.Port), nil
	case "server.cors_origin":
		return c.Server.CORSOrigin, nil
	case "server.max_upload_bytes":
		return strconv.FormatInt(c.Server.MaxUploadBytes, 10), nil
	case "server.upload_rate_per_minute":
		return strconv.Itoa(c.Server.UploadRatePerMinute), nil
	case "blob_store.backend":
		return c.BlobStore.Backend, nil
	case "blob_store.publisher_url":
		return c.BlobStore.PublisherURL, nil
	case "blob_store.aggregator_url":
		return c.BlobStore.AggregatorURL, nil
	case "blob_store.local_dir":
		return c.BlobStore.LocalDir, nil
	case "blob_store.default_epochs":
		return strconv.Itoa(c.BlobStore.DefaultEpochs), nil
	case "blob_store.deletable":
		return strconv.FormatBool(c.BlobStore.Deletable), nil
	case "ledger.network":
		return c.Ledger.Network, nil
	case "ledger.rpc_url":
		return c.Ledger.RPCURL, nil
	case "ledger.package_id":
		return c.Ledger.PackageID, nil
	case "pricing.oracle_url":
		return c.Pricing.OracleURL, nil
	case "pricing.fallback_rate":
		return strconv.FormatFloat(c.Pricing.FallbackRate, 'f', -1, 64), nil
	case "pricing.oracle_disabled":
		return strconv.FormatBool(c.Pricing.OracleDisabled), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files, applies env overrides and
// validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("MOTHRBOX_API_URL", &c.APIURL)
	setString("MOTHRBOX_INDEX_URL", &c.IndexURL)
	setString("MOTHRBOX_OTEL_ENDPOINT", &c.OTelEndpoint)
	setString("MOTHRBOX_CORS_ORIGIN", &c.Server.CORSOrigin)
	setString("MOTHRBOX_API_TOKEN", &c.Server.APIToken)
	setString("MOTHRBOX_BLOB_STORE", &c.BlobStore.Backend)
	setString("WALRUS_PUBLISHER_URL", &c.BlobStore.PublisherURL)
	setString("WALRUS_AGGREGATOR_URL", &c.BlobStore.AggregatorURL)
	setString("SUI_NETWORK", &c.Ledger.Network)
	setString("SUI_RPC_URL", &c.Ledger.RPCURL)
	setString("MOTHRBOX_RECEIPT_PACKAGE", &c.Ledger.PackageID)
	setString("SUI_SECRET_KEY", &c.Ledger.SecretKey)

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid PORT %q", raw)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.BlobStore.Backend = strings.ToLower(strings.TrimSpace(c.BlobStore.Backend))
	c.Ledger.Network = strings.ToLower(strings.TrimSpace(c.Ledger.Network))
	if c.BlobStore.Backend == "local" && c.BlobStore.LocalDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.BlobStore.LocalDir = filepath.Join(home, DefaultLocalStoreDir)
		}
	}
	if c.BlobStore.DefaultEpochs == 0 {
		c.BlobStore.DefaultEpochs = DefaultEpochs
	}
	if c.Pricing.FallbackRate == 0 {
		c.Pricing.FallbackRate = DefaultFallbackRate
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "server.port", "server.upload_rate_per_minute", "blob_store.default_epochs":
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		return int64(parsed), nil
	case "server.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "blob_store.deletable", "pricing.oracle_disabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "pricing.fallback_rate":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive number", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
