package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Server struct {
	Addr         string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RequestTimeout bounds every handler's context.
	RequestTimeout time.Duration
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OracleConfig struct {
	// URL of a remote coordinator. Empty on development networks.
	URL            string
	CallbackSecret string
	Issuer         string
	Timeout        time.Duration
	// FulfillEvery drives the mock coordinator's auto-fulfilment.
	FulfillEvery time.Duration
	// SubscriptionFunding is the wei amount the mock subscription is funded with.
	SubscriptionFunding *big.Int
}

type KeeperConfig struct {
	Interval time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server        Server
	Network       Network
	Store         StoreConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Oracle        OracleConfig
	Keeper        KeeperConfig
	RaffleAddress common.Address
	LogLevel      string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables.
func FromEnv() (Config, error) {
	var errs []error
	chainID := envUint(&errs, "RAFFLE_NETWORK", ChainHardhat)
	network, err := LookupNetwork(chainID)
	if err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("RAFFLE_ENTRANCE_FEE"); raw != "" {
		fee, err := ParseEther(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAFFLE_ENTRANCE_FEE: %w", err))
		} else {
			network.EntranceFee = fee
		}
	}
	network.Interval = envDuration(&errs, "RAFFLE_INTERVAL", network.Interval)
	network.SubscriptionID = envUint(&errs, "VRF_SUBSCRIPTION_ID", network.SubscriptionID)
	if raw := os.Getenv("VRF_COORDINATOR"); raw != "" {
		if !common.IsHexAddress(raw) {
			errs = append(errs, fmt.Errorf("VRF_COORDINATOR: invalid address %q", raw))
		} else {
			network.Coordinator = common.HexToAddress(raw)
		}
	}

	raffleAddress := crypto.CreateAddress(defaultDeployer, 1)
	if raw := os.Getenv("RAFFLE_CONTRACT_ADDRESS"); raw != "" {
		if !common.IsHexAddress(raw) {
			errs = append(errs, fmt.Errorf("RAFFLE_CONTRACT_ADDRESS: invalid address %q", raw))
		} else {
			raffleAddress = common.HexToAddress(raw)
		}
	}

	addr := envString("RAFFLE_ADDR", ":8080")
	cfg := Config{
		Server: Server{
			Addr:           addr,
			PublicURL:      envString("RAFFLE_PUBLIC_URL", "http://localhost"+addr),
			ReadTimeout:    envDuration(&errs, "HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   envDuration(&errs, "HTTP_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout: envDuration(&errs, "HTTP_REQUEST_TIMEOUT", 30*time.Second),
		},
		Network: network,
		Store: StoreConfig{
			Driver:      strings.ToLower(envString("RAFFLE_STORE", StoreMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SQLitePath:  envString("SQLITE_PATH", "raffle.db"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     int(envUint(&errs, "REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envUint(&errs, "REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  envDuration(&errs, "REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration(&errs, "REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration(&errs, "REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "raffle.notifications"),
		},
		Oracle: OracleConfig{
			URL:            os.Getenv("ORACLE_URL"),
			CallbackSecret: os.Getenv("ORACLE_CALLBACK_SECRET"),
			Issuer:         envString("ORACLE_ISSUER", "vrf-coordinator"),
			Timeout:        envDuration(&errs, "ORACLE_TIMEOUT", 10*time.Second),
			FulfillEvery:   envDuration(&errs, "ORACLE_FULFILL_EVERY", 2*time.Second),
		},
		Keeper: KeeperConfig{
			Interval: envDuration(&errs, "KEEPER_INTERVAL", 5*time.Second),
		},
		RaffleAddress: raffleAddress,
		LogLevel:      envString("LOG_LEVEL", "info"),
	}

	funding, err := ParseEther(envString("VRF_SUBSCRIPTION_FUND", "100"))
	if err != nil {
		errs = append(errs, fmt.Errorf("VRF_SUBSCRIPTION_FUND: %w", err))
	}
	cfg.Oracle.SubscriptionFunding = funding

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("RAFFLE_STORE: unknown driver %q", c.Store.Driver))
	}
	if !c.Network.Development {
		if c.Oracle.URL == "" {
			errs = append(errs, fmt.Errorf("ORACLE_URL is required on network %s", c.Network.Name))
		}
		if c.Oracle.CallbackSecret == "" {
			errs = append(errs, fmt.Errorf("ORACLE_CALLBACK_SECRET is required on network %s", c.Network.Name))
		}
		if c.Network.SubscriptionID == 0 {
			errs = append(errs, fmt.Errorf("VRF_SUBSCRIPTION_ID is required on network %s", c.Network.Name))
		}
	}
	if c.Network.Interval <= 0 {
		errs = append(errs, errors.New("RAFFLE_INTERVAL must be positive"))
	}
	if c.Keeper.Interval <= 0 {
		errs = append(errs, errors.New("KEEPER_INTERVAL must be positive"))
	}
	return errs
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envUint(errs *[]error, key string, def uint64) uint64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

// envDuration accepts Go durations ("30s") or bare seconds ("30").
func envDuration(errs *[]error, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.ParseUint(raw, 10, 32); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
