package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Broadcaster receives state-change events. *hub.Hub implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, e hub.Event)
}

// Manager owns every state transition of elections and votes. It keeps the Record Store and
// the ledger in agreement and announces completed transitions on the Broadcaster.
type Manager struct {
	cfg    Config
	store  db.Store
	ledger ledger.Client
	events Broadcaster
	logger *zap.Logger
	now    func() time.Time

	// locks guards check-then-write windows per election. Never held across a ledger wait.
	locks *xsync.Map[int64, *sync.Mutex]
	// votesInFlight holds electionID:voter keys of votes waiting on the ledger.
	votesInFlight *xsync.Map[string, struct{}]
	// deploying holds elections whose create transaction is in flight in this process.
	deploying *xsync.Map[int64, time.Time]

	pool   pond.Pool
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wires the manager. ledgerClient may be nil only with ledger.ModeNone.
func NewManager(cfg Config, store db.Store, ledgerClient ledger.Client, events Broadcaster, logger *zap.Logger, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.LedgerMode != ledger.ModeNone && ledgerClient == nil {
		return nil, fmt.Errorf("ledger mode %q requires a ledger client", cfg.LedgerMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:           cfg,
		store:         store,
		ledger:        ledgerClient,
		events:        events,
		logger:        logger,
		now:           time.Now,
		locks:         xsync.NewMap[int64, *sync.Mutex](),
		votesInFlight: xsync.NewMap[string, struct{}](),
		deploying:     xsync.NewMap[int64, time.Time](),
		pool:          pond.NewPool(cfg.DeployWorkers, pond.WithQueueSize(cfg.DeployQueueSize), pond.WithNonBlocking(true)),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	logger.Info("Lifecycle manager ready",
		zap.String("ledger_mode", string(cfg.LedgerMode)),
		zap.Duration("ledger_timeout", cfg.LedgerTimeout),
		zap.Duration("pending_ttl", cfg.PendingTTL),
		zap.Int("deploy_workers", cfg.DeployWorkers),
	)
	return m, nil
}

// Close cancels in-flight deployments and waits for the worker pool to drain.
// Cancelled deployments are rolled back before Close returns.
func (m *Manager) Close() {
	m.cancel()
	m.pool.StopAndWait()
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// submits reports whether the server itself sends transactions to the ledger.
func (m *Manager) submits() bool {
	return m.cfg.LedgerMode != ledger.ModeNone
}

// lock acquires the per-election mutex and returns its release. Mutexes outlive their
// election so that waiters and later callers always share one.
func (m *Manager) lock(electionID int64) func() {
	mu, _ := m.locks.LoadOrCompute(electionID, func() (*sync.Mutex, bool) {
		return &sync.Mutex{}, false
	})
	mu.Lock()
	return mu.Unlock
}

// background returns a context for writes that must finish even if the caller is gone.
func (m *Manager) background() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(m.ctx), m.cfg.StorageTimeout)
}

func (m *Manager) broadcast(e hub.Event) {
	if m.events == nil {
		return
	}
	ctx, cancel := m.background()
	defer cancel()
	m.events.Broadcast(ctx, e)
}

func (m *Manager) getElection(ctx context.Context, id int64) (*ballot.Election, error) {
	e, err := m.store.GetElection(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Election not found")
		}
		return nil, storage("load election", err)
	}
	return e, nil
}
