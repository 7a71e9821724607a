package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/audit"
	"github.com/fyrsmithlabs/deployd/internal/catalog"
	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/deployments"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	httpserver "github.com/fyrsmithlabs/deployd/internal/http"
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/packager"
	"github.com/fyrsmithlabs/deployd/internal/secrets"
	"github.com/fyrsmithlabs/deployd/internal/session"
	"github.com/fyrsmithlabs/deployd/internal/workflow"
)

// dependencies holds every wired service and the infrastructure handles
// that need explicit teardown.
type dependencies struct {
	logger *logging.Logger

	natsConn    *nats.Conn
	mongoClient *mongo.Client

	sink     audit.Sink
	stream   *audit.Stream
	broker   *credentials.Broker
	gateway  *gateway.Service
	sessions *session.Manager
	history  deployments.Store
	engine   *workflow.Engine
}

// Close releases infrastructure resources in reverse dependency order.
func (d *dependencies) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if d.sink != nil {
		if err := d.sink.Close(ctx); err != nil {
			d.logger.Warn(ctx, "audit sink close failed", zap.Error(err))
		}
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.mongoClient != nil {
		if err := d.mongoClient.Disconnect(ctx); err != nil {
			d.logger.Warn(ctx, "mongo disconnect failed", zap.Error(err))
		}
	}
}

// initDependencies connects infrastructure and builds the service graph:
// audit sink, credential broker, gateway (with the repository composites
// registered as its shell-class runner), session manager, and the workflow
// engine.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger, devMode bool) (*dependencies, error) {
	deps := &dependencies{logger: logger}

	deps.stream = audit.NewStream()
	var durableSink audit.Sink
	var credStore credentials.Store
	var invLog gateway.InvocationLog = gateway.NewMemoryLog()

	if devMode {
		durableSink = audit.NewMemory()
		credStore = credentials.NewMemoryStore()
		deps.history = deployments.NewMemoryStore()
		logger.Info(ctx, "dev mode: in-memory stores, audit stream not persisted")
	} else {
		nc, err := nats.Connect(cfg.Audit.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Audit.NATSURL, err)
		}
		deps.natsConn = nc
		logger.Info(ctx, "connected to NATS", zap.String("url", cfg.Audit.NATSURL))

		auditSvc, err := audit.NewService(nc, logger, cfg.Audit)
		if err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to create audit service: %w", err)
		}
		durableSink = auditSvc

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI.Value()))
		if err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		deps.mongoClient = client

		credStore, err = credentials.NewMongoStore(credentials.MongoStoreOptions{
			Client:     client,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.CredentialsCollection,
			Timeout:    cfg.Mongo.OpTimeout.Duration(),
		})
		if err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to create credential store: %w", err)
		}

		deps.history, err = deployments.NewMongoStore(deployments.MongoStoreOptions{
			Client:     client,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.DeploymentsCollection,
			Timeout:    cfg.Mongo.OpTimeout.Duration(),
		})
		if err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to create deployment store: %w", err)
		}

		// Invocation records are part of the audit trail and must
		// survive restarts.
		invLog, err = gateway.NewMongoLog(gateway.MongoLogOptions{
			Client:     client,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.InvocationsCollection,
			Timeout:    cfg.Mongo.OpTimeout.Duration(),
		})
		if err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to create invocation log: %w", err)
		}
		logger.Info(ctx, "connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	}

	// Every event goes to the durable sink and to the in-process stream
	// feeding SSE subscribers.
	deps.sink = audit.NewTee(durableSink, deps.stream)

	if devMode && !cfg.Credentials.MasterKey.IsSet() {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			deps.Close(time.Second)
			return nil, fmt.Errorf("failed to generate dev master key: %w", err)
		}
		cfg.Credentials.MasterKey = config.Secret(key)
		logger.Info(ctx, "dev mode: generated ephemeral credential master key")
	}

	broker, err := credentials.NewBroker(credStore, logger, cfg.Credentials)
	if err != nil {
		deps.Close(time.Second)
		return nil, fmt.Errorf("failed to create credential broker: %w", err)
	}
	deps.broker = broker

	scrubberCfg := secrets.DefaultConfig()
	scrubberCfg.Enabled = !cfg.Secrets.Disable
	scrubberCfg.DeepScan = cfg.Secrets.DeepScan
	scrubber, err := secrets.New(scrubberCfg)
	if err != nil {
		deps.Close(time.Second)
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}

	cat := catalog.Default()
	gw, err := gateway.NewService(cat, broker, gateway.NewLimiters(cfg.Gateway),
		invLog, deps.sink, scrubber, logger, cfg.Gateway)
	if err != nil {
		deps.Close(time.Second)
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	deps.gateway = gw

	// The repository composites re-enter the gateway for their delegated
	// cloud steps, so they are registered after construction.
	pkg, err := packager.New(gw, logger)
	if err != nil {
		deps.Close(time.Second)
		return nil, fmt.Errorf("failed to create packager: %w", err)
	}
	gw.RegisterRunner(catalog.ClassShell, pkg)

	// External-class actions need a cloud runner. The daemon does not bind
	// one by default; dev mode installs a simulator so the pipeline can be
	// exercised end to end without cloud access.
	if devMode {
		gw.RegisterRunner(catalog.ClassExternal, devCloudRunner())
	}

	deps.sessions = session.NewManager(session.DefaultTurnCapacity, logger)

	reviewer := workflow.NewPolicyReviewer(cfg.Workflow.DeniedActions, cfg.Workflow.AllowedRegions)
	engine, err := workflow.NewEngine(gw, broker, reviewer, deps.sink, deps.sessions,
		deps.history, cat, logger, cfg.Workflow)
	if err != nil {
		deps.Close(time.Second)
		return nil, fmt.Errorf("failed to create workflow engine: %w", err)
	}
	deps.engine = engine

	return deps, nil
}

func initServer(deps *dependencies, cfg *config.Config, logger *logging.Logger) (*httpserver.Server, error) {
	return httpserver.NewServer(httpserver.Dependencies{
		Pipeline: deps.engine,
		Sessions: deps.sessions,
		Gateway:  deps.gateway,
		Broker:   deps.broker,
		History:  deps.history,
		Events:   deps.stream,
	}, cfg.Server, logger)
}
