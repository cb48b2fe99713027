package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleElectionsList returns every election, or only those open now with ?active=true.
func (c *Controller) HandleElectionsList(w http.ResponseWriter, r *http.Request) {
	openOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		openOnly = b
	}

	es, err := c.App.Manager.ListElections(r.Context(), openOnly)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	if es == nil {
		es = make([]ballot.Election, 0)
	}
	writeJSON(w, http.StatusOK, es)
}

func (c *Controller) HandleElectionGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := c.App.Manager.GetElection(r.Context(), id)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *Controller) HandleElectionsByCreator(w http.ResponseWriter, r *http.Request) {
	es, err := c.App.Manager.ListElectionsByCreator(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	if es == nil {
		es = make([]ballot.Election, 0)
	}
	writeJSON(w, http.StatusOK, es)
}

// HandleElectionCreate stores a pending election. When the server submits transactions the
// deployment continues in the background and its outcome is pushed over the websocket.
func (c *Controller) HandleElectionCreate(w http.ResponseWriter, r *http.Request) {
	var in types.CreateElectionRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	fields := map[string]string{}
	start := parseDate(in.StartDate, "startDate", fields)
	end := parseDate(in.EndDate, "endDate", fields)
	if len(fields) > 0 {
		c.writeFailure(w, r, &lifecycle.ValidationError{Message: "Invalid election data", Fields: fields})
		return
	}

	options := make([]ballot.Option, 0, len(in.Options))
	for _, o := range in.Options {
		options = append(options, ballot.Option{ID: o.ID, Name: o.Name, Description: o.Description})
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	req := lifecycle.CreateRequest{
		Title:          in.Title,
		Description:    in.Description,
		StartDate:      start,
		EndDate:        end,
		IsPublic:       isPublic,
		Options:        options,
		CreatorAddress: in.CreatorAddress,
	}
	if u, err := c.sessionUser(r); err != nil {
		c.App.Logger.Warn("Ignoring unreadable session", zap.Error(err))
	} else if u != nil {
		req.CreatorID = &u.ID
	}

	e, err := c.App.Manager.CreateElection(r.Context(), req)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleElectionDelete removes an election that has not started yet.
func (c *Controller) HandleElectionDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.App.Manager.DeleteElection(r.Context(), id); err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Election deleted successfully"})
}

// HandleElectionStatus records deployment progress reported by the creator's wallet.
func (c *Controller) HandleElectionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in types.StatusRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	e, err := c.App.Manager.UpdateStatus(r.Context(), id, lifecycle.StatusRequest{
		Status:          in.Status,
		ContractAddress: in.ContractAddress,
		ChainElectionID: in.ChainElectionID,
		TransactionHash: in.TransactionHash,
	})
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *Controller) HandleElectionResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := c.App.Manager.Results(r.Context(), id)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseDate accepts RFC 3339 timestamps. An empty value yields the zero time, which the
// manager reports as missing.
func parseDate(v, field string, fields map[string]string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		fields[field] = "must be an RFC 3339 timestamp"
		return time.Time{}
	}
	return t
}
