package ballot

import (
	"time"
)

const ElectionsTableName = "elections"

// ElectionStatus tracks on-chain deployment progress. It is not derived from the voting window.
type ElectionStatus string

const (
	ElectionStatusPending ElectionStatus = "pending"
	ElectionStatusActive  ElectionStatus = "active"
	ElectionStatusFailed  ElectionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ElectionStatus) Valid() bool {
	switch s {
	case ElectionStatusPending, ElectionStatusActive, ElectionStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is allowed.
func (s ElectionStatus) Terminal() bool {
	return s == ElectionStatusActive || s == ElectionStatusFailed
}

// Option is one selectable choice. Votes address options by their position in Election.Options,
// ID is only the client-declared identifier and must be unique within the election.
type Option struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Election struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	StartDate       time.Time      `json:"startDate"`
	EndDate         time.Time      `json:"endDate"`
	IsPublic        bool           `json:"isPublic"`
	Options         []Option       `json:"options"`
	CreatorAddress  string         `json:"creatorAddress"`
	CreatorID       *int64         `json:"creatorId"`
	Status          ElectionStatus `json:"status"`
	ContractAddress *string        `json:"contractAddress"`
	ChainElectionID *uint64        `json:"chainElectionId"`
	TransactionHash *string        `json:"transactionHash"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// IsOpen reports whether now falls inside [StartDate, EndDate].
func (e *Election) IsOpen(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// HasStarted reports whether the voting window has opened at now.
func (e *Election) HasStarted(now time.Time) bool {
	return !now.Before(e.StartDate)
}

// HasEnded reports whether the voting window closed before now.
func (e *Election) HasEnded(now time.Time) bool {
	return now.After(e.EndDate)
}

// OptionName returns the display name for an option position, or "Unknown".
func (e *Election) OptionName(index int) string {
	if index < 0 || index >= len(e.Options) {
		return "Unknown"
	}
	return e.Options[index].Name
}

// Deployed reports whether the election has a confirmed contract deployment.
func (e *Election) Deployed() bool {
	return e.Status == ElectionStatusActive && e.ContractAddress != nil
}

// ElectionInput carries the fields of a new election. Status and contract fields are set by the store.
type ElectionInput struct {
	Title          string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	IsPublic       bool
	Options        []Option
	CreatorAddress string
	CreatorID      *int64
}

// StatusUpdate is a partial update: nil pointers leave the stored value unchanged.
type StatusUpdate struct {
	Status          ElectionStatus
	ContractAddress *string
	ChainElectionID *uint64
	TransactionHash *string
}

// ElectionFilter narrows ListElections. Zero values disable a criterion.
type ElectionFilter struct {
	// OpenAt keeps elections whose voting window contains the instant.
	OpenAt *time.Time
	Status ElectionStatus
	// CreatedBefore keeps elections created strictly before the instant.
	CreatedBefore *time.Time
}

// Matches applies the filter in memory.
func (f ElectionFilter) Matches(e *Election) bool {
	if f.OpenAt != nil && !e.IsOpen(*f.OpenAt) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.CreatedBefore != nil && !e.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}
