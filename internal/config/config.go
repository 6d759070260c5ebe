package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "DialPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultNativeToken    = "SOM"
	defaultRegSchema      = "userRegistration"
	defaultTransferSchema = "transferHistory"
	defaultConfirmWait    = 120 * time.Second
	defaultNotifyAttempts = 3
	defaultCacheTTL       = 5 * time.Minute
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	confirmSecondsEnvVar   = "CONFIRM_TIMEOUT_SECONDS"
	confirmDurationEnvVar  = "CONFIRM_TIMEOUT"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
)

// Config captures engine runtime configuration loaded from environment
// variables. NodeRPCURL, DatabaseURL and RedisURL are all optional: without
// a node endpoint the ledger is simulated in process, without a database the
// keyed store falls back to the same simulation, and without Redis the
// resolution cache and idempotency layer are disabled.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	NodeRPCURL  string
	DatabaseURL string
	RedisURL    string

	DefaultCountryCode string
	NativeToken        string
	EngineOwner        string
	RegistryOwners     []string
	RegistrationSchema string
	TransferSchema     string

	ConfirmTimeout     time.Duration
	NotifyMaxAttempts  int
	ResolutionCacheTTL time.Duration
	ShutdownPeriod     time.Duration
	IdempotencyTTL     time.Duration
}

// Load reads configuration values from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		NodeRPCURL:         os.Getenv("NODE_RPC_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		DefaultCountryCode: os.Getenv("DEFAULT_COUNTRY_CODE"),
		NativeToken:        getEnv("NATIVE_TOKEN", defaultNativeToken),
		EngineOwner:        os.Getenv("ENGINE_OWNER"),
		RegistrationSchema: getEnv("REGISTRATION_SCHEMA", defaultRegSchema),
		TransferSchema:     getEnv("TRANSFER_SCHEMA", defaultTransferSchema),
		ConfirmTimeout:     defaultConfirmWait,
		NotifyMaxAttempts:  defaultNotifyAttempts,
		ResolutionCacheTTL: defaultCacheTTL,
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
	}

	if v := os.Getenv("REGISTRY_OWNERS"); v != "" {
		for _, owner := range strings.Split(v, ",") {
			if owner = strings.TrimSpace(owner); owner != "" {
				cfg.RegistryOwners = append(cfg.RegistryOwners, owner)
			}
		}
	}
	// The engine's own registrations are always worth probing.
	if cfg.EngineOwner != "" && !containsOwner(cfg.RegistryOwners, cfg.EngineOwner) {
		cfg.RegistryOwners = append(cfg.RegistryOwners, cfg.EngineOwner)
	}

	var err error
	if cfg.ConfirmTimeout, err = durationEnv(confirmSecondsEnvVar, confirmDurationEnvVar, cfg.ConfirmTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("NOTIFY_MAX_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts < 1 {
			return Config{}, fmt.Errorf("invalid NOTIFY_MAX_ATTEMPTS: %q", v)
		}
		cfg.NotifyMaxAttempts = attempts
	}
	if v := os.Getenv("RESOLUTION_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RESOLUTION_CACHE_TTL: %w", err)
		}
		cfg.ResolutionCacheTTL = d
	}

	if len(cfg.RegistryOwners) == 0 {
		return Config{}, fmt.Errorf("REGISTRY_OWNERS or ENGINE_OWNER must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(secondsVar, durationVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func containsOwner(owners []string, owner string) bool {
	for _, o := range owners {
		if o == owner {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
