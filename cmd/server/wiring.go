package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	accessrequestservice "apihub/internal/accessrequest/service"
	accessrequeststore "apihub/internal/accessrequest/store"
	appmodels "apihub/internal/application/models"
	applicationservice "apihub/internal/application/service"
	applicationstore "apihub/internal/application/store"
	eventhandler "apihub/internal/event/handler"
	"apihub/internal/event/publisher"
	eventstore "apihub/internal/event/store"
	"apihub/internal/identity"
	"apihub/internal/notification"
	"apihub/internal/platform/config"
	"apihub/internal/platform/health"
	"apihub/internal/platform/kafka/producer"
	platformmongo "apihub/internal/platform/mongo"
	platformredis "apihub/internal/platform/redis"
	"apihub/internal/scopes"
	teamservice "apihub/internal/team/service"
	teamstore "apihub/internal/team/store"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/circuit"
	"apihub/pkg/platform/lock"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/tracer"
)

// infrastructure holds the optional backing services. Each is nil when not
// configured and the process falls back to its in-process equivalent.
type infrastructure struct {
	mongo    *platformmongo.Client
	redis    *platformredis.Client
	producer *producer.Producer
	locker   lock.Locker
}

func newInfrastructure(ctx context.Context, cfg config.Server, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{locker: lock.NewMemory()}

	mongoCfg := platformmongo.DefaultConfig()
	mongoCfg.URI = cfg.Mongo.URI
	mongoCfg.Database = cfg.Mongo.Database
	client, err := platformmongo.New(ctx, mongoCfg)
	if err != nil {
		return nil, err
	}
	infra.mongo = client
	if client == nil {
		log.Warn("mongo not configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		infra.Close(log)
		return nil, err
	}
	if redisClient != nil {
		infra.redis = redisClient
		if err := redisClient.RegisterPoolMetrics(prometheus.DefaultRegisterer); err != nil {
			infra.Close(log)
			return nil, fmt.Errorf("register redis pool metrics: %w", err)
		}
		infra.locker = lock.NewRedis(redisClient.Client, cfg.Redis.LockPrefix)
	} else {
		log.Warn("redis not configured, application edits are serialized per process only")
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			infra.Close(log)
			return nil, err
		}
		infra.producer = p
	}
	return infra, nil
}

// RegisterChecks adds a readiness check for every configured backing service.
func (i *infrastructure) RegisterChecks(h *health.Handler) {
	if i.mongo != nil {
		h.RegisterCheck("mongo", i.mongo.Health)
	}
	if i.redis != nil {
		h.RegisterCheck("redis", i.redis.Health)
	}
	if i.producer != nil {
		h.RegisterCheck("kafka", i.producer.Health)
	}
}

func (i *infrastructure) Close(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	if i.producer != nil {
		errs = append(errs, i.producer.Close(ctx))
	}
	if i.redis != nil {
		errs = append(errs, i.redis.Close())
	}
	if i.mongo != nil {
		errs = append(errs, i.mongo.Close(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("closing backing services", "error", err)
	}
}

type accessRequestStore interface {
	applicationservice.AccessRequestStore
	accessrequestservice.Store
}

type teamStore interface {
	applicationservice.TeamFinder
	teamservice.Store
}

type eventStore interface {
	publisher.Store
	eventhandler.Reader
}

type stores struct {
	applications   applicationservice.ApplicationStore
	accessRequests accessRequestStore
	teams          teamStore
	events         eventStore
}

func newStores(ctx context.Context, cfg config.Server, infra *infrastructure) (stores, error) {
	if infra.mongo == nil {
		return stores{
			applications:   applicationstore.NewInMemoryStore(),
			accessRequests: accessrequeststore.NewInMemoryStore(),
			teams:          teamstore.NewInMemoryStore(),
			events:         eventstore.NewInMemoryStore(),
		}, nil
	}

	var cipher sensitive.Cipher = sensitive.Plaintext{}
	if cfg.EncryptionKey != "" {
		c, err := sensitive.NewXChaCha(cfg.EncryptionKey)
		if err != nil {
			return stores{}, fmt.Errorf("encryption key: %w", err)
		}
		cipher = c
	}
	keyer := sensitive.NewHMACKeyer(cfg.MemberKeySecret)

	var indexes []platformmongo.Index
	indexes = append(indexes, applicationstore.Indexes...)
	indexes = append(indexes, accessrequeststore.Indexes...)
	indexes = append(indexes, teamstore.Indexes...)
	indexes = append(indexes, eventstore.Indexes...)
	if err := infra.mongo.EnsureIndexes(ctx, indexes...); err != nil {
		return stores{}, err
	}

	db := infra.mongo.Database()
	return stores{
		applications:   applicationstore.NewMongoStore(db, cipher, keyer),
		accessRequests: accessrequeststore.NewMongoStore(db, cipher),
		teams:          teamstore.NewMongoStore(db, cipher, keyer),
		events:         eventstore.NewMongoStore(db, cipher),
	}, nil
}

// newScopeFixer builds the identity connector guarded by one breaker per
// environment and the fixer that reconciles through it.
func newScopeFixer(cfg config.Server, envs []config.EnvironmentConfig, log *slog.Logger) (*scopes.Fixer, identity.Connector) {
	catalogue := make([]appmodels.Environment, 0, len(envs))
	endpoints := make(map[id.EnvironmentID]identity.Endpoint, len(envs))
	keys := make([]string, 0, len(envs))
	for _, env := range envs {
		envID := id.EnvironmentID(env.ID)
		catalogue = append(catalogue, appmodels.Environment{ID: envID, Rank: env.Rank, Gated: env.ProductionLike})
		endpoints[envID] = identity.Endpoint{BaseURL: env.IdentityBaseURL, APIKey: env.IdentityAPIKey}
		keys = append(keys, env.ID)
	}

	var inner identity.Connector = identity.NewHTTPConnector(endpoints, cfg.Identity.Timeout)
	if cfg.Identity.InMemory {
		log.Warn("using in-memory identity system")
		inner = identity.NewInMemory()
	}

	metrics := identity.NewMetrics()
	breakers := circuit.NewRegistry(identity.BreakerService, keys,
		identity.BreakerOptions(log, metrics,
			circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
			circuit.WithCooldown(cfg.Breaker.Cooldown),
			circuit.WithWindow(cfg.Breaker.Window),
		)...,
	)
	otel := tracer.NewOTel()
	connector := identity.NewGuarded(inner, breakers,
		identity.WithLogger(log),
		identity.WithMetrics(metrics),
		identity.WithTracer(otel),
	)
	fixer := scopes.NewFixer(connector, appmodels.NewEnvironments(catalogue...),
		scopes.WithLogger(log),
		scopes.WithMetrics(scopes.NewMetrics()),
		scopes.WithTracer(otel),
	)
	return fixer, connector
}

func newEventPublisher(cfg config.Server, store publisher.Store, infra *infrastructure, log *slog.Logger) *publisher.Publisher {
	opts := []publisher.PublisherOption{publisher.WithPublisherLogger(log)}
	if infra.producer != nil {
		opts = append(opts, publisher.WithSink(publisher.NewKafkaSink(infra.producer, cfg.Kafka.EventsTopic)))
	}
	return publisher.NewPublisher(store, opts...)
}

func newNotifier(cfg config.Server, infra *infrastructure, log *slog.Logger) applicationservice.Notifier {
	if infra.producer != nil {
		return notification.NewKafkaNotifier(infra.producer, cfg.Kafka.NotificationsTopic)
	}
	return notification.NewLogNotifier(log)
}
