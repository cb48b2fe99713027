package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db/memory"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	creatorAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	voterAddr   = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	otherVoter  = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	manager *Manager
	store   *memory.Store
	ledger  *ledger.Simulated
	hub     *hub.Hub
	clock   *testClock
}

func newFixture(t *testing.T, mode ledger.Mode, tweak ...func(*Config)) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := &testClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}

	f := &fixture{
		store: memory.New().WithClock(clock.Now),
		hub:   hub.New(logger),
		clock: clock,
	}

	cfg := DefaultConfig()
	cfg.LedgerMode = mode
	cfg.LedgerTimeout = 2 * time.Second
	for _, fn := range tweak {
		fn(&cfg)
	}

	var client ledger.Client
	if mode != ledger.ModeNone {
		f.ledger = ledger.NewSimulated(ledger.WithClock(clock.Now))
		client = f.ledger
	}

	m, err := NewManager(cfg, f.store, client, f.hub, logger, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	f.manager = m
	return f
}

// request builds an election whose window is open at the fixture clock when offset is negative.
func (f *fixture) request(startOffset time.Duration) CreateRequest {
	start := f.clock.Now().Add(startOffset)
	return CreateRequest{
		Title:          "Board election",
		Description:    "Annual election of the board",
		StartDate:      start,
		EndDate:        start.Add(2 * time.Hour),
		IsPublic:       true,
		Options:        []ballot.Option{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}},
		CreatorAddress: creatorAddr,
	}
}

// deployed creates an open election and waits for the saga to activate it.
func (f *fixture) deployed(t *testing.T) *ballot.Election {
	t.Helper()
	return f.deploy(t, f.request(-time.Hour))
}

func (f *fixture) deploy(t *testing.T, req CreateRequest) *ballot.Election {
	t.Helper()
	e, err := f.manager.CreateElection(context.Background(), req)
	require.NoError(t, err)

	var out *ballot.Election
	require.Eventually(t, func() bool {
		got, err := f.store.GetElection(context.Background(), e.ID)
		if err != nil || !got.Deployed() {
			return false
		}
		out = got
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return out
}

// activated creates an election and reports its wallet deployment through UpdateStatus.
func (f *fixture) activated(t *testing.T, req CreateRequest) *ballot.Election {
	t.Helper()
	ctx := context.Background()
	e, err := f.manager.CreateElection(ctx, req)
	require.NoError(t, err)

	contract := otherVoter
	e, err = f.manager.UpdateStatus(ctx, e.ID, StatusRequest{Status: "active", ContractAddress: &contract})
	require.NoError(t, err)
	return e
}

// waitEvent reads from sub until an event of kind arrives.
func waitEvent(t *testing.T, sub *hub.Subscriber, kind hub.Kind) hub.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "subscriber closed")
			if e.Type == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}
