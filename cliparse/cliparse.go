package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// RedisURL is a redis:// or rediss:// URL or a bare host:port
	RedisURL      string
	RedisPassword string
	RedisDB       int

	AdminKeySalt string
	IPHashSalt   string

	// Lock manager
	LockTTL         time.Duration
	LockRetryDelay  time.Duration
	LockMaxAttempts int

	// Vote submission retry policy
	SubmitMaxRetries     int
	SubmitBaseDelay      time.Duration
	SubmitMaxDelay       time.Duration
	SubmissionRetryAfter time.Duration
	StoreRetryAfter      time.Duration

	// Circuit breakers
	BreakerFailures int
	BreakerCooldown time.Duration
	CallTimeout     time.Duration

	// Tally cache
	TallyTTL             time.Duration
	LocalCleanupInterval time.Duration
	UpdateQueueSize      int
	UpdateWorkers        int

	// Consistency sweeper
	SweepInterval time.Duration
	SweepAutoFix  bool
}

// Defaults returns a Config with every tunable set to its default value.
// Required secrets and the database URL are left empty.
func Defaults() Config {
	return Config{
		Port:                 3318,
		DatabaseType:         "sqlite",
		LockTTL:              2 * time.Second,
		LockRetryDelay:       50 * time.Millisecond,
		LockMaxAttempts:      10,
		SubmitMaxRetries:     3,
		SubmitBaseDelay:      100 * time.Millisecond,
		SubmitMaxDelay:       2 * time.Second,
		SubmissionRetryAfter: 30 * time.Second,
		StoreRetryAfter:      10 * time.Second,
		BreakerFailures:      5,
		BreakerCooldown:      10 * time.Second,
		CallTimeout:          3 * time.Second,
		TallyTTL:             time.Hour,
		LocalCleanupInterval: time.Minute,
		UpdateQueueSize:      1024,
		UpdateWorkers:        4,
		SweepInterval:        5 * time.Minute,
		SweepAutoFix:         true,
	}
}

// RedisOptions builds client options from RedisURL. REDIS_PASSWORD and
// REDIS_DB, when set, override what the URL carries.
func (c Config) RedisOptions() (*redis.Options, error) {
	if !strings.Contains(c.RedisURL, "://") {
		return &redis.Options{Addr: c.RedisURL, Password: c.RedisPassword, DB: c.RedisDB}, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if c.RedisPassword != "" {
		opts.Password = c.RedisPassword
	}
	if c.RedisDB != 0 {
		opts.DB = c.RedisDB
	}
	return opts, nil
}

// ParseFlags parses CLI flags, falling back to environment variables
// (optionally loaded from an env file) and then to Defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var envFile string

	flags := flag.NewFlagSet("yodeco-votes", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	flags.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	flags.StringVar(&cfg.RedisURL, "r", "", "Redis URL or host:port; empty runs with the in-process cache only")
	flags.StringVar(&envFile, "env-file", ".env", "Optional env file")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	flags.StringVar(&cfg.IPHashSalt, "ip-salt", "", "Origin address hash salt (prefer env)")

	// Tuning
	flags.DurationVar(&cfg.SweepInterval, "sweep-interval", 0, "Consistency sweep interval")
	flags.BoolVar(&cfg.SweepAutoFix, "sweep-autofix", false, "Synchronize inconsistent awards during sweeps (default true)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Values already present in the environment win over the file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	def := Defaults()

	var err error
	if cfg.Port == 0 {
		if cfg.Port, err = envInt("PORT", def.Port); err != nil {
			return Config{}, err
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", def.DatabaseType)
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisURL != "" {
		if _, err := cfg.RedisOptions(); err != nil {
			return Config{}, err
		}
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = envString("IP_HASH_SALT", cfg.AdminKeySalt)
	}

	if cfg.SweepInterval == 0 {
		if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", def.SweepInterval); err != nil {
			return Config{}, err
		}
	}

	durations := []struct {
		dst *time.Duration
		env string
		def time.Duration
	}{
		{&cfg.LockTTL, "LOCK_TTL", def.LockTTL},
		{&cfg.LockRetryDelay, "LOCK_RETRY_DELAY", def.LockRetryDelay},
		{&cfg.SubmitBaseDelay, "SUBMIT_BASE_DELAY", def.SubmitBaseDelay},
		{&cfg.SubmitMaxDelay, "SUBMIT_MAX_DELAY", def.SubmitMaxDelay},
		{&cfg.SubmissionRetryAfter, "SUBMISSION_RETRY_AFTER", def.SubmissionRetryAfter},
		{&cfg.StoreRetryAfter, "STORE_RETRY_AFTER", def.StoreRetryAfter},
		{&cfg.BreakerCooldown, "BREAKER_COOLDOWN", def.BreakerCooldown},
		{&cfg.CallTimeout, "CALL_TIMEOUT", def.CallTimeout},
		{&cfg.TallyTTL, "TALLY_TTL", def.TallyTTL},
		{&cfg.LocalCleanupInterval, "LOCAL_CLEANUP_INTERVAL", def.LocalCleanupInterval},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.env, d.def); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		dst *int
		env string
		def int
	}{
		{&cfg.LockMaxAttempts, "LOCK_MAX_ATTEMPTS", def.LockMaxAttempts},
		{&cfg.SubmitMaxRetries, "SUBMIT_MAX_RETRIES", def.SubmitMaxRetries},
		{&cfg.BreakerFailures, "BREAKER_FAILURES", def.BreakerFailures},
		{&cfg.UpdateQueueSize, "UPDATE_QUEUE_SIZE", def.UpdateQueueSize},
		{&cfg.UpdateWorkers, "UPDATE_WORKERS", def.UpdateWorkers},
	}
	for _, n := range ints {
		if *n.dst, err = envInt(n.env, n.def); err != nil {
			return Config{}, err
		}
	}

	if !set["sweep-autofix"] {
		if cfg.SweepAutoFix, err = envBool("SWEEP_AUTOFIX", def.SweepAutoFix); err != nil {
			return Config{}, err
		}
	}

	if cfg.LockMaxAttempts < 1 {
		return Config{}, errors.New("LOCK_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.SubmitMaxRetries < 0 {
		return Config{}, errors.New("SUBMIT_MAX_RETRIES cannot be negative")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable", key)
	}
	return b, nil
}
