package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultRunAddress        = "localhost:8080"
	defaultMigrationsPath    = "migrations"
	defaultSyncInterval      = 15 * time.Minute
	defaultSyncWorkers       = 4
	defaultMaxPagesPerRun    = 10
	defaultAggregatorTimeout = 30 * time.Second
)

type Config struct {
	Env        string
	DB         DB
	Server     Server
	Cipher     Cipher
	Aggregator Aggregator
	Sync       Sync
}

type DB struct {
	DatabaseURI string
	Migrations  string
}

type Server struct {
	RunAddress string
}

// Cipher holds the credential encryption key material. Exactly one of
// KeyHex (32 bytes, hex encoded) or Passphrase must be set.
type Cipher struct {
	KeyHex     string
	Passphrase string
}

type Aggregator struct {
	Address  string
	ClientID string
	Secret   string
	Timeout  time.Duration
	// UseFake swaps the HTTP client for the deterministic fake,
	// for local development without aggregator credentials.
	UseFake bool
}

type Sync struct {
	Interval       time.Duration
	Workers        int
	MaxPagesPerRun int
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("RUN_ADDRESS", defaultRunAddress)
	viper.SetDefault("MIGRATIONS_PATH", defaultMigrationsPath)
	viper.SetDefault("SYNC_INTERVAL", defaultSyncInterval)
	viper.SetDefault("SYNC_WORKERS", defaultSyncWorkers)
	viper.SetDefault("SYNC_MAX_PAGES", defaultMaxPagesPerRun)
	viper.SetDefault("AGGREGATOR_TIMEOUT", defaultAggregatorTimeout)
	viper.SetDefault("AGGREGATOR_USE_FAKE", false)

	return &Config{
		Env: viper.GetString("APP_ENV"),
		DB: DB{
			DatabaseURI: viper.GetString("DATABASE_URI"),
			Migrations:  viper.GetString("MIGRATIONS_PATH"),
		},
		Server: Server{
			RunAddress: viper.GetString("RUN_ADDRESS"),
		},
		Cipher: Cipher{
			KeyHex:     viper.GetString("CIPHER_KEY"),
			Passphrase: viper.GetString("CIPHER_PASSPHRASE"),
		},
		Aggregator: Aggregator{
			Address:  viper.GetString("AGGREGATOR_ADDRESS"),
			ClientID: viper.GetString("AGGREGATOR_CLIENT_ID"),
			Secret:   viper.GetString("AGGREGATOR_SECRET"),
			Timeout:  viper.GetDuration("AGGREGATOR_TIMEOUT"),
			UseFake:  viper.GetBool("AGGREGATOR_USE_FAKE"),
		},
		Sync: Sync{
			Interval:       viper.GetDuration("SYNC_INTERVAL"),
			Workers:        viper.GetInt("SYNC_WORKERS"),
			MaxPagesPerRun: viper.GetInt("SYNC_MAX_PAGES"),
		},
	}
}
