// Package app assembles the filing service and its infrastructure from
// configuration. Both the server and the CLI start here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rrfiler/internal/filing/builder"
	"rrfiler/internal/filing/lock"
	filingmetrics "rrfiler/internal/filing/metrics"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/records"
	"rrfiler/internal/filing/service"
	"rrfiler/internal/filing/store"
	"rrfiler/internal/filing/transport"
	"rrfiler/internal/platform/config"
	"rrfiler/internal/platform/kafka"
	platformmetrics "rrfiler/internal/platform/metrics"
	"rrfiler/internal/platform/outbox"
	"rrfiler/internal/platform/postgres"
	redisclient "rrfiler/internal/platform/redis"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/audit/publishers/compliance"
	auditmemory "rrfiler/pkg/platform/audit/store/memory"
	auditpg "rrfiler/pkg/platform/audit/store/postgres"
	"rrfiler/pkg/platform/circuit"
	txcontext "rrfiler/pkg/platform/tx"
)

// App holds the assembled service and the infrastructure it owns.
type App struct {
	Service  *service.Service
	Registry *prometheus.Registry
	DB       *sql.DB
	Redis    *redisclient.Client
	Producer *kafka.Producer
	// Relay is nil unless both Postgres and Kafka are configured.
	Relay *outbox.Relay

	closers []func()
}

// Build connects to every configured backend and wires the service. Missing
// optional backends fall back to in-memory implementations.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Registry: platformmetrics.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var (
		subs       service.Store        = store.NewInMemory()
		auditStore audit.Store          = auditmemory.NewInMemoryStore()
		tx         txcontext.Transactor = txcontext.NoopTransactor{}
	)
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(db, logger); err != nil {
			return nil, err
		}
		pgAudit := auditpg.New(db)
		subs, auditStore, tx = store.NewPostgres(db), pgAudit, txcontext.NewSQL(db)

		if len(cfg.Kafka.Brokers) > 0 {
			if err := a.startRelay(ctx, cfg, tx, pgAudit, logger); err != nil {
				return nil, err
			}
		}
	} else {
		logger.WarnContext(ctx, "no database configured, submissions are kept in memory")
		if len(cfg.Kafka.Brokers) > 0 {
			logger.WarnContext(ctx, "kafka configured without a database, transition relay disabled")
		}
	}

	var locker service.Locker = lock.NewInMemory(cfg.Filing.LockTTL)
	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.Redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
		locker = lock.NewRedis(rc.Client, cfg.Filing.LockTTL)
	}

	src, err := NewRecordSource(cfg.Records)
	if err != nil {
		return nil, err
	}

	m := filingmetrics.NewWith(a.Registry)
	client, err := NewTransport(cfg, m, logger)
	if err != nil {
		return nil, err
	}

	var builderOpts []builder.Option
	if cfg.Filing.DocumentPrefix != "" {
		builderOpts = append(builderOpts, builder.WithDocumentPrefix(cfg.Filing.DocumentPrefix))
	}
	if cfg.Filing.Environment == config.EnvSandbox && cfg.Filing.SandboxTCC != "" {
		builderOpts = append(builderOpts, builder.WithTCCOverride(cfg.Filing.SandboxTCC))
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(a.Registry)),
	)

	svc, err := service.New(subs, src, client,
		service.WithConfig(ServiceConfig(cfg.Filing)),
		service.WithBuilder(builder.New(builderOpts...)),
		service.WithLocker(locker),
		service.WithTransactor(tx),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
		service.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	a.Service = svc

	logger.InfoContext(ctx, "filing service ready",
		"environment", string(cfg.Filing.Environment),
		"postgres", a.DB != nil,
		"redis", a.Redis != nil,
		"relay", a.Relay != nil,
	)
	ok = true
	return a, nil
}

func (a *App) startRelay(ctx context.Context, cfg *config.Config, tx txcontext.Transactor, src outbox.Source, logger *slog.Logger) error {
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	a.Producer = producer
	a.closers = append(a.closers, producer.Close)
	if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
		logger.WarnContext(ctx, "could not ensure transitions topic", "topic", cfg.Kafka.Topic, "error", err)
	}
	relay, err := outbox.New(tx, src, producer, logger, outbox.WithInterval(cfg.Kafka.RelayInterval))
	if err != nil {
		return err
	}
	a.Relay = relay
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ServiceConfig maps the filing settings onto the controller's policy.
func ServiceConfig(f config.Filing) service.Config {
	cfg := service.DefaultConfig()
	cfg.PollBackoff = f.PollBackoff
	cfg.NoResponseAfter = f.NoResponseAfter
	cfg.NoReceiptAfter = f.NoReceiptAfter
	cfg.PollConcurrency = f.PollConcurrency
	if f.PollBatchSize > 0 {
		cfg.PollBatchSize = f.PollBatchSize
	}
	cfg.Transmitter = models.Transmitter{
		Name:      f.Transmitter.Name,
		TIN:       f.Transmitter.TIN,
		TCC:       f.Transmitter.TCC,
		AccountID: f.Transmitter.AccountID,
		Address:   models.Address(f.Transmitter.Address),
		Contact: models.Contact{
			Name:  f.Transmitter.ContactName,
			Phone: f.Transmitter.ContactPhone,
			Email: f.Transmitter.ContactEmail,
		},
	}
	return cfg
}

// NewRecordSource prefers the HTTP record service over a JSON file.
func NewRecordSource(cfg config.Records) (service.RecordSource, error) {
	switch {
	case cfg.URL != "":
		return records.NewHTTP(cfg.URL, cfg.Timeout)
	case cfg.File != "":
		return records.LoadFile(cfg.File)
	}
	return nil, errors.New("no record source configured")
}

// NewTransport returns the SFTP client for the active environment behind a
// circuit breaker. A sandbox without a host gets an in-memory transfer host.
func NewTransport(cfg *config.Config, m *filingmetrics.Metrics, logger *slog.Logger) (transport.Client, error) {
	creds := cfg.ActiveSFTP()
	breaker := circuit.New("sftp",
		circuit.WithFailureThreshold(5),
		circuit.WithCooldown(time.Minute),
	)

	if creds.Host == "" {
		if cfg.Filing.Environment == config.EnvProduction {
			return nil, errors.New("production requires an sftp host")
		}
		logger.Warn("no sandbox sftp host configured, using in-memory transfer host")
		return transport.NewGuarded(transport.NewMemoryClient(), breaker, m, logger), nil
	}

	sftpCfg := transport.SFTPConfig{
		Host:        creds.Host,
		Port:        creds.Port,
		User:        creds.User,
		Password:    creds.Password,
		HostKey:     creds.HostKey,
		Timeout:     cfg.SFTP.Timeout,
		MaxAttempts: cfg.SFTP.MaxAttempts,
		// Sandbox hosts may be stood up without a pinned key.
		InsecureIgnoreHostKey: cfg.Filing.Environment == config.EnvSandbox && creds.HostKey == "",
	}
	if creds.PrivateKeyPath != "" {
		key, err := os.ReadFile(creds.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read sftp private key: %w", err)
		}
		sftpCfg.PrivateKey = key
	}
	client, err := transport.NewSFTPClient(sftpCfg, transport.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return transport.NewGuarded(client, breaker, m, logger), nil
}
