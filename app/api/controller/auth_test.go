package controller

import (
	"net/http"
	"testing"
	"time"

	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userJSON struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	WalletAddress *string `json:"walletAddress"`
}

func TestUserRegistration(t *testing.T) {
	ts := newTestServer(t, ledger.ModeNone)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{name: "valid", body: map[string]any{"username": "alice", "password": "correct horse"}, status: http.StatusCreated},
		{name: "duplicate username", body: map[string]any{"username": "alice", "password": "battery staple"}, status: http.StatusBadRequest},
		{name: "short password", body: map[string]any{"username": "bob", "password": "short"}, status: http.StatusBadRequest},
		{name: "short username", body: map[string]any{"username": "bo", "password": "long enough"}, status: http.StatusBadRequest},
		{name: "bad wallet", body: map[string]any{"username": "carol", "password": "long enough", "walletAddress": "0xnope"}, status: http.StatusBadRequest},
		{name: "with wallet", body: map[string]any{"username": "dave", "password": "long enough", "walletAddress": voterAddr}, status: http.StatusCreated},
		{name: "wallet taken", body: map[string]any{"username": "erin", "password": "long enough", "walletAddress": voterAddr}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			require.Equal(t, tt.status, ts.do(t, http.MethodPost, "/api/users", tt.body, &raw))
			assert.NotContains(t, raw, "passwordHash")
		})
	}
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t, ledger.ModeNone)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/users", map[string]any{
		"username": "alice", "password": "correct horse",
	}, nil))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/users/me", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice", "password": "wrong password",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "nobody", "password": "correct horse",
	}, nil))

	var me userJSON
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice", "password": "correct horse",
	}, &me))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/users/me", nil, &me))
	assert.Equal(t, "alice", me.Username)
	assert.Nil(t, me.WalletAddress)

	// the session user becomes the creator
	var e electionJSON
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/elections", electionBody(time.Now().Add(-time.Minute)), &e))
	require.NotNil(t, e.CreatorID)
	assert.Equal(t, me.ID, *e.CreatorID)
	ts.activate(t, e.ID)

	var bound userJSON
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/users/me/wallet", map[string]any{"walletAddress": voterAddr}, &bound))
	require.NotNil(t, bound.WalletAddress)
	assert.Equal(t, voterAddr, *bound.WalletAddress)

	// a bound wallet restricts whom the session may vote as
	var res errorJSON
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/votes", map[string]any{
		"electionId": e.ID, "voterAddress": otherVoter, "optionId": 0, "transactionHash": txHash,
	}, &res))
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/votes", map[string]any{
		"electionId": e.ID, "voterAddress": voterAddr, "optionId": 0, "transactionHash": txHash,
	}, nil))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/users/me", nil, nil))
}

func TestForgedSessionRejected(t *testing.T) {
	ts := newTestServer(t, ledger.ModeNone)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/users/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "eyJhbGciOiJub25lIn0.eyJ1aWQiOjF9."})

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t, ledger.ModeNone)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/admin/elections/stale", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/admin/elections/reap", nil, nil,
		"Authorization", "Bearer wrong"))

	e := ts.createElection(t, time.Now().Add(time.Hour))
	_, err := ts.app.Manager.UpdateStatus(t.Context(), e.ID, lifecycle.StatusRequest{Status: "failed"})
	require.NoError(t, err)

	var stale []electionJSON
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/elections/stale", nil, &stale,
		"Authorization", "Bearer "+adminToken))
	require.Len(t, stale, 1)
	assert.Equal(t, e.ID, stale[0].ID)

	var reaped map[string]int
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/admin/elections/reap", nil, &reaped,
		"Authorization", "Bearer "+adminToken))
	assert.Equal(t, 1, reaped["deleted"])
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, electionPath(e.ID), nil, nil))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, ledger.ModeSimulated)

	var res map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", nil, &res))
	assert.Equal(t, "ok", res["status"])
	assert.Equal(t, "simulated", res["ledgerMode"])
	assert.NotContains(t, res, "redis")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, ledger.ModeNone)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/votes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))
}
