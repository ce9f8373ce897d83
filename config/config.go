package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/unilib/workers"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "change-me-in-production"

type PolicyDefaults struct {
	Currency        string  `yaml:"currency"`
	LateFeePerDay   int64   `yaml:"lateFeePerDay"`
	DamageFeeRate   float64 `yaml:"damageFeeRate"`
	LostBookFeeRate float64 `yaml:"lostBookFeeRate"`
}

// Config is read from an optional YAML file (CONFIG_FILE) and then overridden by environment variables.
type Config struct {
	Env            string         `yaml:"env"`
	Port           string         `yaml:"port"`
	MongoURI       string         `yaml:"mongoURI"`
	DBName         string         `yaml:"mongoDB"`
	JWTSecret      string         `yaml:"jwtSecret"`
	JWTTTL         string         `yaml:"jwtTTL"`
	AuthEmail      string         `yaml:"authEmail"`
	AuthPass       string         `yaml:"authPassword"`
	LogLevel       string         `yaml:"logLevel"`
	RedisAddr      string         `yaml:"redisAddr"`
	RedisPassword  string         `yaml:"redisPassword"`
	EventStream    string         `yaml:"eventStream"`
	SweepOverdueAt string         `yaml:"sweepOverdueAt"`
	SweepDueSoonAt string         `yaml:"sweepDueSoonAt"`
	DueSoonWindow  string         `yaml:"dueSoonWindow"`
	MetadataLookup bool           `yaml:"metadataLookup"`
	CORSOrigins    []string       `yaml:"corsOrigins"`
	Policy         PolicyDefaults `yaml:"policy"`

	// parsed by validate
	TokenTTL     time.Duration     `yaml:"-"`
	DueSoon      time.Duration     `yaml:"-"`
	OverdueClock workers.ClockTime `yaml:"-"`
	DueSoonClock workers.ClockTime `yaml:"-"`
}

func defaults() Config {
	return Config{
		Env:            "development",
		Port:           "8080",
		MongoURI:       "mongodb://localhost:27017",
		DBName:         "unilib",
		JWTSecret:      defaultJWTSecret,
		JWTTTL:         "24h",
		LogLevel:       "info",
		EventStream:    "unilib:events",
		SweepOverdueAt: "00:05",
		SweepDueSoonAt: "09:30",
		DueSoonWindow:  "48h",
		Policy: PolicyDefaults{
			Currency:        "IDR",
			LateFeePerDay:   5000,
			DamageFeeRate:   0.3,
			LostBookFeeRate: 1.0,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ENV":               &cfg.Env,
		"PORT":              &cfg.Port,
		"MONGODB_URI":       &cfg.MongoURI,
		"MONGODB_DB":        &cfg.DBName,
		"JWT_SECRET":        &cfg.JWTSecret,
		"JWT_TTL":           &cfg.JWTTTL,
		"AUTH_EMAIL":        &cfg.AuthEmail,
		"AUTH_PASSWORD":     &cfg.AuthPass,
		"LOG_LEVEL":         &cfg.LogLevel,
		"REDIS_ADDR":        &cfg.RedisAddr,
		"REDIS_PASSWORD":    &cfg.RedisPassword,
		"EVENT_STREAM":      &cfg.EventStream,
		"SWEEP_OVERDUE_AT":  &cfg.SweepOverdueAt,
		"SWEEP_DUE_SOON_AT": &cfg.SweepDueSoonAt,
		"DUE_SOON_WINDOW":   &cfg.DueSoonWindow,
		"POLICY_CURRENCY":   &cfg.Policy.Currency,
	}
	for key, dst := range strs {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}
	if v := getEnv("POLICY_LATE_FEE_PER_DAY", ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: POLICY_LATE_FEE_PER_DAY: %w", err)
		}
		cfg.Policy.LateFeePerDay = n
	}
	for key, dst := range map[string]*float64{
		"POLICY_DAMAGE_RATE": &cfg.Policy.DamageFeeRate,
		"POLICY_LOSS_RATE":   &cfg.Policy.LostBookFeeRate,
	} {
		if v := getEnv(key, ""); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = f
		}
	}
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if v := getEnv("METADATA_LOOKUP", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: METADATA_LOOKUP: %w", err)
		}
		cfg.MetadataLookup = b
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.MongoURI == "" || c.DBName == "" {
		errs = append(errs, errors.New("MONGODB_URI and MONGODB_DB are required"))
	}
	if c.IsProduction() && (c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32) {
		errs = append(errs, errors.New("JWT_SECRET must be a strong secret of at least 32 characters in production"))
	}
	var err error
	if c.TokenTTL, err = time.ParseDuration(c.JWTTTL); err != nil || c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL %q must be a positive duration", c.JWTTTL))
	}
	if c.DueSoon, err = time.ParseDuration(c.DueSoonWindow); err != nil || c.DueSoon <= 0 {
		errs = append(errs, fmt.Errorf("DUE_SOON_WINDOW %q must be a positive duration", c.DueSoonWindow))
	}
	if c.OverdueClock, err = workers.ParseClock(c.SweepOverdueAt); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_OVERDUE_AT: %w", err))
	}
	if c.DueSoonClock, err = workers.ParseClock(c.SweepDueSoonAt); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_DUE_SOON_AT: %w", err))
	}
	c.Policy.Currency = strings.ToUpper(strings.TrimSpace(c.Policy.Currency))
	if !currencyCode.MatchString(c.Policy.Currency) {
		errs = append(errs, fmt.Errorf("policy currency %q must be a 3 letter code", c.Policy.Currency))
	}
	if c.Policy.LateFeePerDay < 0 {
		errs = append(errs, errors.New("policy late fee per day must not be negative"))
	}
	if c.Policy.DamageFeeRate < 0 || c.Policy.DamageFeeRate > 1 || c.Policy.LostBookFeeRate < 0 || c.Policy.LostBookFeeRate > 1 {
		errs = append(errs, errors.New("policy rates must be between 0 and 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
