package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"auth-bootstrap/internal/audit"
	"auth-bootstrap/internal/bootstrap"
	"auth-bootstrap/internal/client"
	"auth-bootstrap/internal/config"
	"auth-bootstrap/internal/credstore"
	"auth-bootstrap/internal/handoff"
	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/readiness"
	redisrepo "auth-bootstrap/internal/repository/redis"
	"auth-bootstrap/internal/repository/scylla"
	"auth-bootstrap/internal/surface"
	"auth-bootstrap/internal/util"
)

// Factory manages the lifecycle of all agent dependencies.
type Factory struct {
	config *config.Config

	// Clients
	redisClient   *client.RedisClient
	scyllaClient  *scylla.ScyllaClient
	kafkaProducer *client.KafkaProducer

	// Wiring
	credStore *credstore.Store
	profiles  scylla.ProfileRepository
	pending   identity.PendingStore
	broker    *identity.Broker
	emitter   *audit.Emitter
	surface   *surface.HTTPSurface
	machine   *bootstrap.Machine

	closeOnce sync.Once
}

// NewFactory loads config and initializes every dependency of the agent.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeWiring(); err != nil {
		return nil, fmt.Errorf("failed to initialize agent wiring: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("redis_enabled", cfg.Redis.Enabled),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)
	return f, nil
}

// initializeClients brings up the external service clients. In production
// the profile store is required; Redis and Kafka always degrade with a
// warning so a kiosk without them still boots.
func (f *Factory) initializeClients() error {
	// ScyllaDB (remote profile document store)
	scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get())
	if err != nil {
		if f.config.IsProduction() {
			return fmt.Errorf("scylla: %w", err)
		}
		util.Warn("Scylla unavailable, profile lookups will soft-fail", util.ErrorField(err))
	} else {
		f.scyllaClient = scyllaClient
	}

	// Redis (pending-challenge cache)
	if f.config.Redis.Enabled {
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			util.Warn("Redis initialization failed - using in-memory pending store", util.ErrorField(err))
		} else {
			f.redisClient = redisClient
		}
	}

	// Kafka (best-effort audit stream)
	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without audit stream", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeWiring() error {
	cfg := f.config

	creds, err := credstore.NewStore(cfg.Agent.StateDir)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	f.credStore = creds

	if f.scyllaClient != nil {
		f.profiles = scylla.NewProfileStore(f.scyllaClient)
	} else {
		f.profiles = scylla.UnavailableProfileStore{}
	}

	if f.redisClient != nil {
		f.pending = redisrepo.NewPendingCache(f.redisClient)
	} else {
		f.pending = identity.NewMemoryPendingStore()
	}

	f.emitter = audit.NewEmitter(f.kafkaProducer, util.Get())

	provider := identity.NewHTTPProvider(cfg.Identity.BaseURL, cfg.Identity.APIKey, cfg.Identity.Timeout)
	verify := identity.NewVerifyClient(cfg.Verify.BaseURL, cfg.Verify.Timeout)
	botCheck := &identity.FallbackBotCheck{
		Primary:  identity.NewHTTPBotCheck(cfg.Identity.BaseURL, identity.BotCheckInvisible, cfg.Identity.Timeout),
		Fallback: identity.NewHTTPBotCheck(cfg.Identity.BaseURL, identity.BotCheckVisible, cfg.Identity.Timeout),
	}

	f.broker = identity.NewBroker(provider, verify, f.pending, f.profiles, creds, botCheck, f.emitter, util.Get())
	f.surface = surface.NewHTTPSurface(f.broker, util.Get())

	gate := readiness.NewGate(cfg.Agent.ReadyInterval, cfg.Agent.ReadyTimeout, util.Get())
	probes := []readiness.Probe{
		httpProbe("identity-provider", cfg.Identity.BaseURL+"/health"),
		httpProbe("verification-endpoint", cfg.Verify.BaseURL+"/health"),
		{Name: "login-surface", Check: func(ctx context.Context) bool { return f.surface.Ready() }},
	}

	h := handoff.New(&handoff.ExecLauncher{
		Command: cfg.Agent.HandoffCommand,
		Args:    cfg.Agent.HandoffArgs,
	})

	retry := bootstrap.RetryPolicy{
		MaxAttempts: cfg.Agent.RetryAttempts,
		Interval:    cfg.Agent.RetryInterval,
	}

	f.machine = bootstrap.NewMachine(gate, probes, creds, f.broker, f.profiles, f.surface, h, retry, f.emitter)
	f.surface.SetController(f.machine)
	return nil
}

// httpProbe reports a capability present as soon as anything answers on its
// endpoint; the gate only cares that the dependency has attached.
func httpProbe(name, url string) readiness.Probe {
	probeClient := &http.Client{Timeout: 2 * time.Second}
	return readiness.Probe{
		Name: name,
		Check: func(ctx context.Context) bool {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return false
			}
			resp, err := probeClient.Do(req)
			if err != nil {
				return false
			}
			resp.Body.Close()
			return true
		},
	}
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) Machine() *bootstrap.Machine { return f.machine }

func (f *Factory) Surface() *surface.HTTPSurface { return f.surface }

func (f *Factory) Broker() *identity.Broker { return f.broker }

func (f *Factory) Profiles() scylla.ProfileRepository { return f.profiles }

// HealthCheck reports per-dependency health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(ctx); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	return healthErrors
}

// Close shuts every client down exactly once.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})
	return nil
}
