package controller

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/utils"
	"go.uber.org/zap"
)

const (
	usernameMin = 3
	usernameMax = 50
	passwordMin = 8
	// bcrypt ignores input beyond 72 bytes
	passwordMax = 72
)

// HandleUserCreate registers a user with an optional wallet address.
func (c *Controller) HandleUserCreate(w http.ResponseWriter, r *http.Request) {
	var in types.CreateUserRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	fields := map[string]string{}
	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < usernameMin || n > usernameMax {
		fields["username"] = "must be between 3 and 50 characters"
	}
	if len(in.Password) < passwordMin || len(in.Password) > passwordMax {
		fields["password"] = "must be between 8 and 72 characters"
	}
	var wallet *string
	if in.WalletAddress != "" {
		addr, ok := utils.NormalizeAddress(in.WalletAddress)
		if !ok {
			fields["walletAddress"] = "must be a valid wallet address"
		}
		wallet = &addr
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "Invalid user data", Fields: fields})
		return
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		c.App.Logger.Error("Failed to hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	u, err := c.App.Store.CreateUser(r.Context(), ballot.UserInput{
		Username:      username,
		PasswordHash:  hash,
		WalletAddress: wallet,
	})
	if errors.Is(err, db.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "Username or wallet address is already registered")
		return
	}
	if err != nil {
		c.App.Logger.Error("Failed to create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.App.Logger.Info("User registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	writeJSON(w, http.StatusCreated, u)
}

// HandleLogin checks credentials and issues a session cookie.
func (c *Controller) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in types.LoginRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := c.App.Store.GetUserByUsername(r.Context(), strings.TrimSpace(in.Username))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		c.App.Logger.Error("Failed to load user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if u == nil || !utils.CheckPassword(u.PasswordHash, in.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := c.IssueSession(w, u); err != nil {
		c.App.Logger.Error("Failed to sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (c *Controller) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	c.ClearSession(w)
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Logged out"})
}

func (c *Controller) HandleUserMe(w http.ResponseWriter, r *http.Request) {
	u, _ := c.sessionUser(r)
	writeJSON(w, http.StatusOK, u)
}

// HandleUserWallet binds a wallet address to the session user. Votes cast with the session
// must then come from this address.
func (c *Controller) HandleUserWallet(w http.ResponseWriter, r *http.Request) {
	u, _ := c.sessionUser(r)

	var in types.WalletRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	addr, ok := utils.NormalizeAddress(in.WalletAddress)
	if !ok {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Error:  "Invalid wallet address",
			Fields: map[string]string{"walletAddress": "must be a valid wallet address"},
		})
		return
	}

	updated, err := c.App.Store.UpdateUserWallet(r.Context(), u.ID, addr)
	switch {
	case errors.Is(err, db.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "Wallet address is already registered")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		c.App.Logger.Error("Failed to update wallet", zap.Int64("user_id", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}
