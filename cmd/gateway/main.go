// Command gateway runs the event-to-integration delivery gateway: one or
// more source adapters feeding the ingest pipeline, the dispatch/delivery
// path, the retry engine, the scheduler, and the admin/live surfaces.
package main

import (
	"context"
	stdsql "database/sql"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eventgateway/gateway/pkg/adminapi"
	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/breaker"
	"github.com/eventgateway/gateway/pkg/broker"
	"github.com/eventgateway/gateway/pkg/cleanup"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/database"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/engine"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/idempotency"
	"github.com/eventgateway/gateway/pkg/ingestapi"
	"github.com/eventgateway/gateway/pkg/live"
	"github.com/eventgateway/gateway/pkg/matcher"
	"github.com/eventgateway/gateway/pkg/retry"
	"github.com/eventgateway/gateway/pkg/scheduler"
	"github.com/eventgateway/gateway/pkg/source"
	"github.com/eventgateway/gateway/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	s := store.New(dbClient.Client)
	cb := breaker.New(s, cfg.CircuitBreaker)
	d := deliver.New(s, cb, float64(cfg.Dispatch.MaxConcurrentDeliveries), cfg.Dispatch.MaxConcurrentDeliveries*2)
	m := matcher.New(s, external.NewStaticHierarchy(nil))
	idem := idempotency.New(s).WithTTL(cfg.Retention.ProcessedEventTTL)
	auditor := audit.New(s, summaryFields(cfg.Retention.AllowedSummaryFields))
	liveMgr := live.NewManager(5 * time.Second)

	adapters, pushAdapters, ingestServers, closers := buildSources(cfg, s)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	ing := engine.New(idem, m, d, auditor, cfg.Ingest, adapters, pushAdapters, liveMgr)
	retryEngine := retry.New(s, d, cfg.Retry)
	sched := scheduler.New(s, d, cfg.Scheduler)
	cleanupSvc := cleanup.New(s, cfg.Retention)

	ing.Start(ctx)
	retryEngine.Start(ctx)
	sched.Start(ctx)
	cleanupSvc.Start(ctx)

	for _, srv := range ingestServers {
		srv := srv
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("ingest server stopped", "addr", srv.addr, "error", err)
			}
		}()
	}

	adminHTTP := &http.Server{
		Addr:    ":" + getEnv("ADMIN_PORT", "8081"),
		Handler: adminapi.NewServer(s, liveMgr).Handler(),
	}
	go func() {
		log.Printf("admin API listening on %s", adminHTTP.Addr)
		if err := adminHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining in-flight work")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.GracefulShutdownTimeout)
	defer cancel()

	ing.Stop()
	retryEngine.Stop()
	sched.Stop()
	cleanupSvc.Stop()

	for _, srv := range ingestServers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("ingest server shutdown error", "addr", srv.addr, "error", err)
		}
	}
	if err := adminHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}

	log.Println("gateway stopped")
}

// summaryFields is a payload-summary allowlist that returns the same
// configured fields for every org and event type.
type summaryFields []string

func (f summaryFields) AllowedFields(_ context.Context, _, _ string) ([]string, error) {
	return f, nil
}

// namedIngestServer pairs an ingestapi.Server with the address it binds,
// for shutdown logging.
type namedIngestServer struct {
	addr string
	*ingestapi.Server
}

func (n *namedIngestServer) Start() error {
	return n.Server.Start(n.addr)
}

// buildSources instantiates one adapter per configured source, grouped by
// the uniform poll/commit vs claim/finish contracts the ingest engine
// expects (§4.2). closers release any per-source resources (raw *sql.DB
// connections, broker gRPC dials) on shutdown.
func buildSources(cfg *config.Config, s *store.Store) ([]source.Adapter, []*source.PushAdapter, []*namedIngestServer, []func() error) {
	var adapters []source.Adapter
	var pushAdapters []*source.PushAdapter
	var ingestServers []*namedIngestServer
	var closers []func() error

	for id, sc := range cfg.Sources.GetAll() {
		switch sc.Kind {
		case config.SourceKindRelational:
			db, err := stdsql.Open("pgx", sc.DSN)
			if err != nil {
				log.Fatalf("open relational source %q: %v", id, err)
			}
			closers = append(closers, db.Close)
			adapters = append(adapters, source.NewRelationalAdapter(id, db, s, cfg.Ingest))

		case config.SourceKindBroker:
			consumer, err := broker.Dial(sc.DSN, sc.BrokerTopic)
			if err != nil {
				log.Fatalf("dial broker source %q: %v", id, err)
			}
			closers = append(closers, consumer.Close)
			partitionCount := int32(sc.BrokerPartitionCount)
			if partitionCount <= 0 {
				partitionCount = 1
			}
			adapters = append(adapters, source.NewBrokerAdapter(id, sc.BrokerTopic, partitionCount, consumer, s))

		case config.SourceKindHTTPPush:
			push := source.NewPushAdapter(id, s)
			pushAdapters = append(pushAdapters, push)

			authToken := os.Getenv(sc.AuthTokenEnv)
			srv := ingestapi.NewServer(push, authToken)
			ingestServers = append(ingestServers, &namedIngestServer{addr: sc.ListenAddr, Server: srv})
		}
	}

	return adapters, pushAdapters, ingestServers, closers
}
