// Package bootstrap opens the backends selected by config and assembles
// the collaborators every binary needs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hackgods/clinic-availability/internal/api"
	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/feed"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/notify"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
)

type Deps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Firestore *firestore.Client

	Directory availability.Directory
	Ledger    appointment.Ledger
	Feed      feed.Feed
	Locker    redisclient.Locker
	Notifier  notify.Notifier
	Verifier  auth.Verifier
	Accounts  auth.Accounts
	Checks    []api.Check

	closers []func()
}

// Open connects everything cfg asks for. On error, whatever was already
// opened is closed again.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Deps, error) {
	d := &Deps{}
	if err := d.open(ctx, cfg, logger); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) open(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var app *firebase.App
	if cfg.NeedsFirebase() {
		var opts []option.ClientOption
		if cfg.FirebaseCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
		}

		var fbCfg *firebase.Config
		if cfg.FirebaseProjectID != "" {
			fbCfg = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
		}

		var err error
		app, err = firebase.NewApp(ctx, fbCfg, opts...)
		if err != nil {
			return fmt.Errorf("firebase app: %w", err)
		}
		logger.Info("firebase app initialised", zap.String("project_id", cfg.FirebaseProjectID))
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		d.Pool = pool
		d.closers = append(d.closers, pool.Close)

		if err := db.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("connected to Postgres")

		d.Directory = availability.NewPgDirectory(pool)
		d.Ledger = appointment.NewPgLedger(pool)
		d.Checks = append(d.Checks, api.Check{Name: "postgres", Critical: true, Ping: pool.Ping})

	case config.BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("firestore client: %w", err)
		}
		d.Firestore = client
		d.closers = append(d.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("close firestore", zap.Error(err))
			}
		})
		logger.Info("connected to Firestore")

		d.Directory = availability.NewFirestoreDirectory(client)
		d.Ledger = appointment.NewFirestoreLedger(client)
		d.Checks = append(d.Checks, api.Check{Name: "firestore", Critical: true, Ping: func(ctx context.Context) error {
			_, err := client.Collection("users").Limit(1).Documents(ctx).GetAll()
			return err
		}})

	default:
		d.Directory = availability.NewMemoryDirectory()
		d.Ledger = appointment.NewMemoryLedger()
		logger.Warn("using in-memory store, data is lost on exit")
	}

	if cfg.UsesRedis() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		d.Redis = rdb
		d.closers = append(d.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		})
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

		d.Feed = redisclient.NewPubSubFeed(rdb, logger)
		d.Locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		d.Checks = append(d.Checks, api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		d.Feed = feed.NewHub()
		d.Locker = redisclient.NewLocalSlotLocker()
	}

	d.Notifier = notify.Noop{}
	if cfg.PushEnabled {
		client, err := app.Messaging(ctx)
		if err != nil {
			return fmt.Errorf("firebase messaging: %w", err)
		}
		d.Notifier = notify.NewFCMNotifier(client)
	}

	switch cfg.AuthMode {
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("firebase auth: %w", err)
		}
		d.Verifier = auth.NewFirebaseVerifier(client, d.lookupRole)
		d.Accounts = auth.NewFirebaseAccounts(client)
	default:
		logger.Warn("trusting X-User-ID headers, do not expose this listener")
		d.Verifier = auth.HeaderVerifier{}
		d.Accounts = auth.LocalAccounts{Prefix: "doc-"}
	}

	return nil
}

// lookupRole reads the role stored on the user profile. Unknown users get
// no role and fall back to patient.
func (d *Deps) lookupRole(ctx context.Context, uid string) (auth.Role, error) {
	u, err := d.Directory.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return u.Role, nil
}

// ManagerOptions wires the opened collaborators into an availability.Manager.
func (d *Deps) ManagerOptions(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) []availability.Option {
	return []availability.Option{
		availability.WithLocation(cfg.Location),
		availability.WithLocker(d.Locker),
		availability.WithFeed(d.Feed),
		availability.WithNotifier(d.Notifier),
		availability.WithMetrics(m),
		availability.WithLogger(logger),
		availability.WithReconcileGrace(cfg.ReconcileGrace),
	}
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
