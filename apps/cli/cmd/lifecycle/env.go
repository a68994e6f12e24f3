package lifecyclecmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/notify"
	lifecyclerepo "github.com/zenGate-Global/retailops/domains/module-lifecycle/be/repo"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/events"
	platformlogging "github.com/zenGate-Global/retailops/platform/go/logging"
	"github.com/zenGate-Global/retailops/platform/go/persistence"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

// services is everything one CLI invocation needs. close releases the pool
// and the event bus connection.
type services struct {
	repo      *lifecyclerepo.PostgresRepository
	lifecycle *service.LifecycleService
	approvals *service.ApprovalWorkflow
	audit     *service.AuditTrail
	stats     *service.StatsAggregator
	logger    *zap.Logger
	close     func()
}

// addConnectionFlags registers the flags shared by every lifecycle command.
// DATABASE_URL and REDIS_URL are used when the flags are empty.
func addConnectionFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	cmd.PersistentFlags().String("schema", persistence.DefaultSchema, "Lifecycle schema name")
	cmd.PersistentFlags().String("redis-url", "", "Redis URL for lifecycle events (default $REDIS_URL; empty discards events)")
	cmd.PersistentFlags().String("events-prefix", events.DefaultChannelPrefix, "Event channel prefix")
	cmd.PersistentFlags().Int("max-retries", 3, "Automatic retry cap for error -> provisioning (0 disables)")
	cmd.PersistentFlags().String("as-user", "", "Act as this user id instead of the system actor")
	cmd.PersistentFlags().String("log-level", "warn", "Log level")
}

func flagOrEnv(cmd *cobra.Command, flag, envKey string) string {
	v, _ := cmd.Flags().GetString(flag)
	if strings.TrimSpace(v) == "" {
		v = os.Getenv(envKey)
	}
	return strings.TrimSpace(v)
}

func openServices(ctx context.Context, cmd *cobra.Command) (*services, error) {
	databaseURL := flagOrEnv(cmd, "database-url", "DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	schema, _ := cmd.Flags().GetString("schema")
	prefix, _ := cmd.Flags().GetString("events-prefix")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli", Level: level, Console: true})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "retailops-cli", MaxConns: 2})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	closers := []func(){func() { persistence.ClosePool(pool) }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = logger.Sync()
	}

	repo, err := lifecyclerepo.NewPostgresRepository(persistence.NewLifecycleDB(persistence.LifecycleDBConfig{Pool: pool, Schema: schema}))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init lifecycle repository: %w", err)
	}

	var (
		provisioner service.Provisioner = notify.Discard{Logger: logger}
		notifier    service.Notifier    = notify.Discard{Logger: logger}
	)
	if redisURL := flagOrEnv(cmd, "redis-url", "REDIS_URL"); redisURL != "" {
		client, err := events.Connect(ctx, redisURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })

		bus, err := events.NewPublisher(client, prefix)
		if err != nil {
			closeAll()
			return nil, err
		}
		pub, err := notify.NewPublisher(bus, logger)
		if err != nil {
			closeAll()
			return nil, err
		}
		provisioner, notifier = pub, pub
	}

	policies := service.NewPolicyResolver(repo)
	audit := service.NewAuditTrail(repo)
	lifecycle := service.NewLifecycleService(repo, policies, audit, service.Options{
		Provisioner:         provisioner,
		Logger:              logger,
		MaxAutomaticRetries: maxRetries,
	})

	return &services{
		repo:      repo,
		lifecycle: lifecycle,
		approvals: service.NewApprovalWorkflow(repo, lifecycle, policies, service.ApprovalOptions{Notifier: notifier, Logger: logger}),
		audit:     audit,
		stats:     service.NewStatsAggregator(repo),
		logger:    logger,
		close:     closeAll,
	}, nil
}

// actor is the system actor unless --as-user names a person.
func actor(cmd *cobra.Command, requestID string) requesttrace.AuditInfo {
	userID, _ := cmd.Flags().GetString("as-user")
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return requesttrace.System(requestID)
	}
	return requesttrace.AuditInfo{ActorKind: requesttrace.ActorKindUser, UserID: &userID, RequestID: requestID}
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant id %q: %w", raw, err)
	}
	return id, nil
}

// parseWindow reads optional RFC 3339 bounds.
func parseWindow(from, to string) (service.TimeWindow, error) {
	var w service.TimeWindow
	if from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return w, fmt.Errorf("invalid --from: %w", err)
		}
		ts = ts.UTC()
		w.From = &ts
	}
	if to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return w, fmt.Errorf("invalid --to: %w", err)
		}
		ts = ts.UTC()
		w.To = &ts
	}
	return w, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
