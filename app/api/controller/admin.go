package controller

import (
	"net/http"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
)

// HandleStaleElections lists what the next reaper pass would delete.
func (c *Controller) HandleStaleElections(w http.ResponseWriter, r *http.Request) {
	es, err := c.App.Manager.StalePending(r.Context())
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	if es == nil {
		es = make([]ballot.Election, 0)
	}
	writeJSON(w, http.StatusOK, es)
}

// HandleReap runs the reaper now instead of waiting for the schedule.
func (c *Controller) HandleReap(w http.ResponseWriter, r *http.Request) {
	n, err := c.App.Manager.ReapStalePending(r.Context())
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReapResponse{Deleted: n})
}
