package controller

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	apitypes "github.com/canopy-network/canopyvote/app/api/types"
	"github.com/canopy-network/canopyvote/pkg/db/memory"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	adminToken  = "test-admin-token"
	creatorAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	voterAddr   = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	otherVoter  = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	txHash      = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type testServer struct {
	*httptest.Server
	app    *apitypes.App
	ledger *ledger.Simulated
	client *http.Client
}

func newTestServer(t *testing.T, mode ledger.Mode, tweak ...func(*lifecycle.Config)) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := lifecycle.DefaultConfig()
	cfg.LedgerMode = mode
	cfg.LedgerTimeout = 2 * time.Second
	for _, fn := range tweak {
		fn(&cfg)
	}

	ts := &testServer{}
	var client ledger.Client
	if mode != ledger.ModeNone {
		ts.ledger = ledger.NewSimulated()
		client = ts.ledger
	}

	store := memory.New()
	events := hub.New(logger)
	manager, err := lifecycle.NewManager(cfg, store, client, events, logger)
	require.NoError(t, err)

	ts.app = &apitypes.App{
		Config: apitypes.Config{
			AdminToken:    adminToken,
			SessionSecret: []byte("test-secret"),
			SessionTTL:    time.Hour,
		},
		Store:   store,
		Ledger:  client,
		Manager: manager,
		Hub:     events,
		Logger:  logger,
	}

	router, err := NewController(ts.app).NewRouter()
	require.NoError(t, err)
	ts.Server = httptest.NewServer(WithCORS(router))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	ts.client = &http.Client{Jar: jar, Timeout: 10 * time.Second}

	t.Cleanup(func() {
		events.Close()
		manager.Close()
		ts.Server.Close()
	})
	return ts
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path string, body any, out any, headers ...string) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	res, err := ts.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out), "%s %s", method, path)
	}
	return res.StatusCode
}

func electionBody(start time.Time) map[string]any {
	return map[string]any{
		"title":          "Board election",
		"description":    "Annual election of the board",
		"startDate":      start.UTC().Format(time.RFC3339),
		"endDate":        start.Add(2 * time.Hour).UTC().Format(time.RFC3339),
		"options":        []map[string]any{{"id": 1, "name": "Alice"}, {"id": 2, "name": "Bob"}},
		"creatorAddress": creatorAddr,
	}
}

type electionJSON struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	IsPublic        bool    `json:"isPublic"`
	CreatorAddress  string  `json:"creatorAddress"`
	CreatorID       *int64  `json:"creatorId"`
	ContractAddress *string `json:"contractAddress"`
	ChainElectionID *uint64 `json:"chainElectionId"`
}

type errorJSON struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// createElection posts an election starting at start and returns it.
func (ts *testServer) createElection(t *testing.T, start time.Time) electionJSON {
	t.Helper()
	var e electionJSON
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/elections", electionBody(start), &e))
	require.NotZero(t, e.ID)
	return e
}

// activate reports a wallet deployment for the election, as the creator's client does.
func (ts *testServer) activate(t *testing.T, id int64) electionJSON {
	t.Helper()
	var e electionJSON
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, electionPath(id)+"/status", map[string]any{
		"status":          "active",
		"contractAddress": otherVoter,
	}, &e))
	return e
}

// waitActive polls the election until the deployment saga activated it.
func (ts *testServer) waitActive(t *testing.T, id int64) electionJSON {
	t.Helper()
	require.Eventually(t, func() bool {
		e, err := ts.app.Store.GetElection(context.Background(), id)
		return err == nil && e.Deployed()
	}, 3*time.Second, 10*time.Millisecond)

	var e electionJSON
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, electionPath(id), nil, &e))
	return e
}

func electionPath(id int64) string {
	return "/api/elections/" + strconv.FormatInt(id, 10)
}
