package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	StreamName      string        `mapstructure:"stream_name"`
	ConsumerName    string        `mapstructure:"consumer_name"` // Prefix of the per-contract durable consumers
	MaxReconnects   int           `mapstructure:"max_reconnects"`
	ReconnectWait   time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName  string        `mapstructure:"connection_name"`
	AckWait         time.Duration `mapstructure:"ack_wait"`
	MaxDeliver      int           `mapstructure:"max_deliver"`
	NakDelay        time.Duration `mapstructure:"nak_delay"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

// EthereumConfig holds Ethereum-specific configuration
type EthereumConfig struct {
	RPCURL               string        `mapstructure:"rpc_url"`
	ChainID              domain.Chain  `mapstructure:"chain_id"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
	MaxCachedTimestamps  int           `mapstructure:"max_cached_timestamps"`
	Confirmations        uint64        `mapstructure:"confirmations"`
	WindowSize           uint64        `mapstructure:"window_size"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize int `mapstructure:"pool_size"`
}

// MappingConfig is one entry of a contract's event map
type MappingConfig struct {
	EventName      string              `mapstructure:"event_name"`
	CollectionType string              `mapstructure:"collection_type"`
	Rules          domain.MappingRules `mapstructure:"rules"`
}

// ContractConfig describes a tracked contract. The ABI is given inline or as a path to a JSON file.
type ContractConfig struct {
	PublicAddress string             `mapstructure:"public_address"`
	ABI           string             `mapstructure:"abi"`
	ABIPath       string             `mapstructure:"abi_path"`
	Parameters    []domain.Parameter `mapstructure:"parameters"`
	Map           []MappingConfig    `mapstructure:"map"`
	CollectiveID  string             `mapstructure:"collective_id"`
	StartBlock    uint64             `mapstructure:"start_block"`
}

// MirrorConfig holds the mirroring rules shared by every contract
type MirrorConfig struct {
	SubmissionEvents []string      `mapstructure:"submission_events"`
	VoteEvents       []string      `mapstructure:"vote_events"`
	TitleTemplate    string        `mapstructure:"title_template"`
	BlockTime        time.Duration `mapstructure:"block_time"`
	IncludeGrace     bool          `mapstructure:"include_grace"`
}

// EventEmitterConfig holds configuration for event-emitter
type EventEmitterConfig struct {
	BaseConfig      `mapstructure:",squash"`
	Worker          WorkerConfig     `mapstructure:"worker"`
	Database        DatabaseConfig   `mapstructure:"database"`
	NATS            NATSConfig       `mapstructure:"nats"`
	Ethereum        EthereumConfig   `mapstructure:"ethereum"`
	Contracts       []ContractConfig `mapstructure:"contracts"`
	PollInterval    time.Duration    `mapstructure:"poll_interval"`
	RetryMaxElapsed time.Duration    `mapstructure:"retry_max_elapsed"`
}

// MirrorWorkerConfig holds configuration for mirror-worker
type MirrorWorkerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Contracts  []ContractConfig `mapstructure:"contracts"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
}

// setCommonDefaults sets the defaults shared by every service
func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "DAO_MIRROR")
	v.SetDefault("ethereum.chain_id", string(domain.ChainEthereumMainnet))
	v.SetDefault("ethereum.block_head_ttl", "12s")
	v.SetDefault("ethereum.block_head_stale_window", "60s")
	v.SetDefault("ethereum.max_cached_timestamps", 10000)
}

// LoadEventEmitterConfig loads configuration for event-emitter
func LoadEventEmitterConfig(configFile string, envPath string) (*EventEmitterConfig, error) {
	v := configureViper("event-emitter", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("nats.connection_name", "event-emitter")
	v.SetDefault("nats.duplicate_window", "2m")
	v.SetDefault("ethereum.confirmations", 12)
	v.SetDefault("ethereum.window_size", 1000)
	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("poll_interval", "15s")
	v.SetDefault("retry_max_elapsed", "5m")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config EventEmitterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadMirrorWorkerConfig loads configuration for mirror-worker
func LoadMirrorWorkerConfig(configFile string, envPath string) (*MirrorWorkerConfig, error) {
	v := configureViper("mirror-worker", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("nats.connection_name", "mirror-worker")
	v.SetDefault("nats.consumer_name", "mirror-worker")
	v.SetDefault("nats.ack_wait", "60s")
	v.SetDefault("nats.max_deliver", 20)
	v.SetDefault("nats.nak_delay", "30s")
	v.SetDefault("mirror.submission_events", []string{domain.EVENT_SUBMIT_PROPOSAL})
	v.SetDefault("mirror.vote_events", []string{domain.EVENT_SUBMIT_VOTE})
	v.SetDefault("mirror.title_template", "Proposal #{{proposalIndex}}")
	v.SetDefault("mirror.block_time", "15s")

	if err := v.ReadInConfig(); err != nil {
		var error viper.ConfigFileNotFoundError
		if errors.As(err, &error) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config MirrorWorkerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// ABIBaseDir returns the directory relative abi_path values are resolved against:
// the directory of the config file when one is given, config/ otherwise
func ABIBaseDir(configFile string) string {
	if configFile == "" {
		return "config/"
	}
	return filepath.Dir(configFile)
}

// Descriptors validates the tracked contracts and resolves their ABIs.
// Relative ABI paths are resolved against baseDir.
func Descriptors(contracts []ContractConfig, baseDir string) ([]domain.ContractDescriptor, error) {
	if len(contracts) == 0 {
		return nil, errors.New("no contracts configured")
	}

	seen := make(map[string]bool, len(contracts))
	descriptors := make([]domain.ContractDescriptor, 0, len(contracts))
	for _, c := range contracts {
		d, err := c.Descriptor(baseDir)
		if err != nil {
			return nil, err
		}

		key := strings.ToLower(d.PublicAddress)
		if seen[key] {
			return nil, fmt.Errorf("contract %s is configured twice", d.PublicAddress)
		}
		seen[key] = true

		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// Descriptor builds the descriptor of a tracked contract
func (c ContractConfig) Descriptor(baseDir string) (domain.ContractDescriptor, error) {
	if !common.IsHexAddress(c.PublicAddress) {
		return domain.ContractDescriptor{}, fmt.Errorf("invalid contract address %q", c.PublicAddress)
	}
	if c.CollectiveID == "" {
		return domain.ContractDescriptor{}, fmt.Errorf("contract %s has no collective_id", c.PublicAddress)
	}

	abiJSON := c.ABI
	if abiJSON == "" {
		if c.ABIPath == "" {
			return domain.ContractDescriptor{}, fmt.Errorf("contract %s has neither abi nor abi_path", c.PublicAddress)
		}
		path := c.ABIPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path) //nolint:gosec,G304
		if err != nil {
			return domain.ContractDescriptor{}, fmt.Errorf("failed to read ABI of %s: %w", c.PublicAddress, err)
		}
		abiJSON = string(data)
	}

	mappings := make([]domain.EventMapping, 0, len(c.Map))
	for _, m := range c.Map {
		mappings = append(mappings, domain.EventMapping{
			EventName:      m.EventName,
			CollectionType: domain.ParseCollectionType(m.CollectionType),
			Rules:          m.Rules,
		})
	}

	return domain.ContractDescriptor{
		PublicAddress: c.PublicAddress,
		ABI:           abiJSON,
		Parameters:    c.Parameters,
		Map:           mappings,
		CollectiveID:  c.CollectiveID,
		StartBlock:    c.StartBlock,
	}, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/mirror-worker/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("DAO_MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	// Contracts are structured and only come from the config file
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.nak_delay",
		"nats.duplicate_window",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.block_head_ttl",
		"ethereum.block_head_stale_window",
		"ethereum.max_cached_timestamps",
		"ethereum.confirmations",
		"ethereum.window_size",
		// Emitter
		"worker.pool_size",
		"poll_interval",
		"retry_max_elapsed",
		// Mirror
		"mirror.submission_events",
		"mirror.vote_events",
		"mirror.title_template",
		"mirror.block_time",
		"mirror.include_grace",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	// Create candidates list
	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
