// Package config loads runtime settings: defaults, then an optional YAML file
// named by RRFILER_CONFIG, then RRFILER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment selects which regulator endpoint and credential set is used.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   Server      `yaml:"server"`
	Log      Log         `yaml:"log"`
	Database Database    `yaml:"database"`
	Redis    RedisConfig `yaml:"redis"`
	Kafka    Kafka       `yaml:"kafka"`
	SFTP     SFTP        `yaml:"sftp"`
	Filing   Filing      `yaml:"filing"`
	Records  Records     `yaml:"records"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string `yaml:"addr"`
	// SchedulerInterval runs poll cycles in-process when positive.
	SchedulerInterval time.Duration `yaml:"scheduler_interval"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Database struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the distributed per-submission lock when URL is set.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Kafka enables the outbox relay when Brokers is non-empty.
type Kafka struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	RelayInterval time.Duration `yaml:"relay_interval"`
}

// SFTPCredentials is one transfer host account.
type SFTPCredentials struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	HostKey        string `yaml:"host_key"`
}

func (c SFTPCredentials) configured() bool {
	return c.Host != ""
}

type SFTP struct {
	Production  SFTPCredentials `yaml:"production"`
	Sandbox     SFTPCredentials `yaml:"sandbox"`
	Timeout     time.Duration   `yaml:"timeout"`
	MaxAttempts int             `yaml:"max_attempts"`
}

// Transmitter identifies the filing agent to the regulator.
type Transmitter struct {
	Name         string `yaml:"name"`
	TIN          string `yaml:"tin"`
	TCC          string `yaml:"tcc"`
	AccountID    string `yaml:"account_id"`
	ContactName  string `yaml:"contact_name"`
	ContactPhone string `yaml:"contact_phone"`
	ContactEmail string `yaml:"contact_email"`
	// Address fills a record's transmitter address when that is empty.
	Address TransmitterAddress `yaml:"address"`
}

type TransmitterAddress struct {
	Street     string `yaml:"street"`
	Unit       string `yaml:"unit"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
}

type Filing struct {
	Environment     Environment     `yaml:"environment"`
	Transmitter     Transmitter     `yaml:"transmitter"`
	SandboxTCC      string          `yaml:"sandbox_tcc"`
	DocumentPrefix  string          `yaml:"document_prefix"`
	PollBackoff     []time.Duration `yaml:"poll_backoff"`
	NoResponseAfter time.Duration   `yaml:"no_response_after"`
	NoReceiptAfter  time.Duration   `yaml:"no_receipt_after"`
	PollConcurrency int             `yaml:"poll_concurrency"`
	PollBatchSize   int             `yaml:"poll_batch_size"`
	LockTTL         time.Duration   `yaml:"lock_ttl"`
}

// Records locates the transaction record source: an HTTP service or a
// JSON file, checked in that order.
type Records struct {
	URL     string        `yaml:"url"`
	File    string        `yaml:"file"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info"},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{Topic: "filing.transitions", RelayInterval: 5 * time.Second},
		SFTP:  SFTP{Timeout: 30 * time.Second, MaxAttempts: 3},
		Filing: Filing{
			Environment:     EnvSandbox,
			DocumentPrefix:  "RRE",
			PollBackoff:     []time.Duration{15 * time.Minute, time.Hour, 3 * time.Hour, 6 * time.Hour, 12 * time.Hour},
			NoResponseAfter: 24 * time.Hour,
			NoReceiptAfter:  5 * 24 * time.Hour,
			PollConcurrency: 8,
			PollBatchSize:   200,
			LockTTL:         2 * time.Minute,
		},
		Records: Records{Timeout: 10 * time.Second},
	}
}

// FromEnv builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("RRFILER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type envReader struct {
	get  func(string) string
	errs []error
}

func (r *envReader) str(key string, dst *string) {
	if v := r.get(key); v != "" {
		*dst = v
	}
}

func (r *envReader) int(key string, dst *int) {
	if v := r.get(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v := r.get(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v := r.get(key); v != "" {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}

func (r *envReader) durations(key string, dst *[]time.Duration) {
	var parts []string
	r.list(key, &parts)
	if parts == nil {
		return
	}
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(p)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		out = append(out, d)
	}
	*dst = out
}

func (r *envReader) credentials(prefix string, dst *SFTPCredentials) {
	r.str(prefix+"HOST", &dst.Host)
	r.int(prefix+"PORT", &dst.Port)
	r.str(prefix+"USER", &dst.User)
	r.str(prefix+"PASSWORD", &dst.Password)
	r.str(prefix+"PRIVATE_KEY_PATH", &dst.PrivateKeyPath)
	r.str(prefix+"HOST_KEY", &dst.HostKey)
}

func (c *Config) mergeEnv(get func(string) string) error {
	r := &envReader{get: get}

	r.str("RRFILER_ADDR", &c.Server.Addr)
	r.duration("RRFILER_SCHEDULER_INTERVAL", &c.Server.SchedulerInterval)
	r.str("RRFILER_LOG_LEVEL", &c.Log.Level)
	r.str("RRFILER_DATABASE_DSN", &c.Database.DSN)
	r.str("RRFILER_REDIS_URL", &c.Redis.URL)
	r.list("RRFILER_KAFKA_BROKERS", &c.Kafka.Brokers)
	r.str("RRFILER_KAFKA_TOPIC", &c.Kafka.Topic)

	r.credentials("RRFILER_SFTP_", &c.SFTP.Production)
	r.credentials("RRFILER_SFTP_SANDBOX_", &c.SFTP.Sandbox)
	r.duration("RRFILER_SFTP_TIMEOUT", &c.SFTP.Timeout)
	r.int("RRFILER_SFTP_MAX_ATTEMPTS", &c.SFTP.MaxAttempts)

	var env string
	r.str("RRFILER_ENVIRONMENT", &env)
	if env != "" {
		c.Filing.Environment = Environment(env)
	}
	r.str("RRFILER_TRANSMITTER_NAME", &c.Filing.Transmitter.Name)
	r.str("RRFILER_TRANSMITTER_TIN", &c.Filing.Transmitter.TIN)
	r.str("RRFILER_TRANSMITTER_TCC", &c.Filing.Transmitter.TCC)
	r.str("RRFILER_TRANSMITTER_ACCOUNT_ID", &c.Filing.Transmitter.AccountID)
	r.str("RRFILER_TRANSMITTER_CONTACT_NAME", &c.Filing.Transmitter.ContactName)
	r.str("RRFILER_TRANSMITTER_CONTACT_PHONE", &c.Filing.Transmitter.ContactPhone)
	r.str("RRFILER_TRANSMITTER_CONTACT_EMAIL", &c.Filing.Transmitter.ContactEmail)
	r.str("RRFILER_TRANSMITTER_STREET", &c.Filing.Transmitter.Address.Street)
	r.str("RRFILER_TRANSMITTER_UNIT", &c.Filing.Transmitter.Address.Unit)
	r.str("RRFILER_TRANSMITTER_CITY", &c.Filing.Transmitter.Address.City)
	r.str("RRFILER_TRANSMITTER_STATE", &c.Filing.Transmitter.Address.State)
	r.str("RRFILER_TRANSMITTER_POSTAL_CODE", &c.Filing.Transmitter.Address.PostalCode)
	r.str("RRFILER_TRANSMITTER_COUNTRY", &c.Filing.Transmitter.Address.Country)
	r.str("RRFILER_SANDBOX_TCC", &c.Filing.SandboxTCC)
	r.str("RRFILER_DOCUMENT_PREFIX", &c.Filing.DocumentPrefix)
	r.durations("RRFILER_POLL_BACKOFF", &c.Filing.PollBackoff)
	r.duration("RRFILER_NO_RESPONSE_AFTER", &c.Filing.NoResponseAfter)
	r.duration("RRFILER_NO_RECEIPT_AFTER", &c.Filing.NoReceiptAfter)
	r.int("RRFILER_POLL_CONCURRENCY", &c.Filing.PollConcurrency)
	r.int("RRFILER_POLL_BATCH_SIZE", &c.Filing.PollBatchSize)
	r.duration("RRFILER_LOCK_TTL", &c.Filing.LockTTL)

	r.str("RRFILER_RECORDS_URL", &c.Records.URL)
	r.str("RRFILER_RECORDS_FILE", &c.Records.File)
	r.duration("RRFILER_RECORDS_TIMEOUT", &c.Records.Timeout)

	return errors.Join(r.errs...)
}

// ActiveSFTP returns the credential set for the configured environment.
func (c *Config) ActiveSFTP() SFTPCredentials {
	if c.Filing.Environment == EnvProduction {
		return c.SFTP.Production
	}
	return c.SFTP.Sandbox
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Filing.Environment {
	case EnvSandbox, EnvProduction:
	default:
		add("environment must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Filing.Environment)
	}
	if len(c.Filing.PollBackoff) == 0 {
		add("poll backoff table must not be empty")
	}
	for i, d := range c.Filing.PollBackoff {
		if d <= 0 {
			add("poll backoff entry %d must be positive", i+1)
		}
	}
	if c.Filing.NoResponseAfter <= 0 || c.Filing.NoReceiptAfter <= 0 {
		add("no-response and no-receipt ceilings must be positive")
	}
	if c.Filing.PollConcurrency <= 0 {
		add("poll concurrency must be positive")
	}
	if c.SFTP.MaxAttempts <= 0 {
		add("sftp max attempts must be positive")
	}
	if c.Records.URL == "" && c.Records.File == "" {
		add("a record source (RRFILER_RECORDS_URL or RRFILER_RECORDS_FILE) is required")
	}

	if c.Filing.Environment == EnvProduction {
		t := c.Filing.Transmitter
		if t.TIN == "" || t.TCC == "" || t.AccountID == "" {
			add("production requires transmitter TIN, TCC and account id")
		}
		p := c.SFTP.Production
		if !p.configured() || p.User == "" {
			add("production requires sftp host and user")
		}
		if p.Password == "" && p.PrivateKeyPath == "" {
			add("production requires sftp password or private key")
		}
		if p.HostKey == "" {
			add("production requires a pinned sftp host key")
		}
		if c.Database.DSN == "" {
			add("production requires a database DSN")
		}
	}
	if c.Filing.Environment == EnvSandbox && c.SFTP.Sandbox.configured() && c.Filing.SandboxTCC == "" {
		add("sandbox transfer host requires the sandbox TCC")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
