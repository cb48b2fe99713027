package controller

import (
	"net/http"
	"time"

	"github.com/canopy-network/canopyvote/app/api/types"
	"github.com/gorilla/mux"
)

type Controller struct {
	App        *types.App
	AdminToken string
	JWTSecret  []byte
	SessionTTL time.Duration
	// SecureCookies marks the session cookie Secure (ENVIRONMENT=production).
	SecureCookies bool
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:           app,
		AdminToken:    app.Config.AdminToken,
		JWTSecret:     app.Config.SessionSecret,
		SessionTTL:    app.Config.SessionTTL,
		SecureCookies: app.Config.Production,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo back the origin to allow credentials with any origin
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// Sessions
	r.HandleFunc("/api/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// Users
	r.HandleFunc("/api/users", c.HandleUserCreate).Methods(http.MethodPost)
	r.Handle("/api/users/me", c.RequireSession(http.HandlerFunc(c.HandleUserMe))).Methods(http.MethodGet)
	r.Handle("/api/users/me/wallet", c.RequireSession(http.HandlerFunc(c.HandleUserWallet))).Methods(http.MethodPut)

	// Elections. The creator route is registered before {id} so "creator" is never parsed as an id.
	r.HandleFunc("/api/elections", c.HandleElectionsList).Methods(http.MethodGet)
	r.HandleFunc("/api/elections", c.HandleElectionCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/elections/creator/{address}", c.HandleElectionsByCreator).Methods(http.MethodGet)
	r.HandleFunc("/api/elections/{id}", c.HandleElectionGet).Methods(http.MethodGet)
	r.HandleFunc("/api/elections/{id}", c.HandleElectionDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/elections/{id}/status", c.HandleElectionStatus).Methods(http.MethodPut)
	r.HandleFunc("/api/elections/{id}/results", c.HandleElectionResults).Methods(http.MethodGet)

	// Votes
	r.HandleFunc("/api/votes", c.HandleVoteCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/votes/check", c.HandleVoteCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/votes/election/{id}", c.HandleVotesByElection).Methods(http.MethodGet)

	// Operator endpoints, bearer ADMIN_TOKEN only
	r.Handle("/api/admin/elections/stale", c.RequireAdmin(http.HandlerFunc(c.HandleStaleElections))).Methods(http.MethodGet)
	r.Handle("/api/admin/elections/reap", c.RequireAdmin(http.HandlerFunc(c.HandleReap))).Methods(http.MethodPost)

	// WebSocket push channel
	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	return r, nil
}
