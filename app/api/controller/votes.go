package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"go.uber.org/zap"
)

// HandleVoteCreate casts a ballot. With a session whose user has a bound wallet, the voter
// address must be that wallet.
func (c *Controller) HandleVoteCreate(w http.ResponseWriter, r *http.Request) {
	var in types.VoteRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	fields := map[string]string{}
	if in.ElectionID <= 0 {
		fields["electionId"] = "is required"
	}
	if in.VoterAddress == "" {
		fields["voterAddress"] = "is required"
	}
	if in.OptionID == nil {
		fields["optionId"] = "is required"
	}
	if len(fields) > 0 {
		c.writeFailure(w, r, &lifecycle.ValidationError{Message: "Invalid vote data", Fields: fields})
		return
	}

	u, err := c.sessionUser(r)
	if err != nil {
		c.App.Logger.Warn("Ignoring unreadable session", zap.Error(err))
	} else if u != nil && u.WalletAddress != nil && !strings.EqualFold(*u.WalletAddress, strings.TrimSpace(in.VoterAddress)) {
		writeError(w, http.StatusForbidden, "Voter address does not match your registered wallet")
		return
	}

	vote, err := c.App.Manager.CastVote(r.Context(), lifecycle.VoteRequest{
		ElectionID:      in.ElectionID,
		VoterAddress:    in.VoterAddress,
		OptionID:        *in.OptionID,
		TransactionHash: in.TransactionHash,
	})
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

func (c *Controller) HandleVotesByElection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	votes, err := c.App.Manager.ListVotes(r.Context(), id)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	if votes == nil {
		votes = make([]ballot.Vote, 0)
	}
	writeJSON(w, http.StatusOK, votes)
}

// HandleVoteCheck answers ?electionId=&voterAddress= with {hasVoted}.
func (c *Controller) HandleVoteCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("electionId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "electionId and voterAddress are required")
		return
	}
	voter := q.Get("voterAddress")
	if voter == "" {
		writeError(w, http.StatusBadRequest, "electionId and voterAddress are required")
		return
	}

	voted, err := c.App.Manager.HasVoted(r.Context(), id, voter)
	if err != nil {
		c.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.HasVotedResponse{HasVoted: voted})
}
