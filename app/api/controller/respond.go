package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

// writeFailure maps a lifecycle or ledger error onto its HTTP status.
func (c *Controller) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *lifecycle.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: verr.Message, Fields: verr.Fields})
	case errors.Is(err, lifecycle.ErrConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Ledger confirmation timed out; the transaction may still complete")
	case errors.Is(err, ledger.ErrRejected):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, lifecycle.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		c.App.Logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a bounded JSON body into v and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "bad json")
		}
		return false
	}
	return true
}

// pathID parses the {id} route variable and answers 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid election id")
		return 0, false
	}
	return id, true
}
