package authsession

import (
	"github.com/MrEthical07/authsession/clock"
	"github.com/MrEthical07/authsession/storage"
)

// Builder assembles a Manager.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	backend   Backend
	store     storage.Storage
	clock     clock.Clock
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration; start from DefaultConfig to change single fields.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the authentication backend. It is required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithStorage sets where the session record is persisted. Defaults to an
// in-memory store.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.store = s
	return b
}

// WithClock overrides the time source. Tests pass a *clock.Fake.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Manager in the logged-out
// state. Call Manager.Initialize to resume a persisted session.
//
// A Builder can only be used once.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.backend == nil {
		return nil, ErrBackendRequired
	}

	store := b.store
	if store == nil {
		store = storage.NewMemory()
	}
	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}

	m := &Manager{
		config:  cfg,
		backend: b.backend,
		store:   store,
		clock:   clk,
	}
	m.scheduler = newRefreshScheduler(clk, m.onRefreshTimer)
	m.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	m.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return m, nil
}
