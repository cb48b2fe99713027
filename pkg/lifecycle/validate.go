package lifecycle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/canopy-network/canopyvote/pkg/utils"
)

const (
	titleMin       = 3
	titleMax       = 100
	descriptionMin = 10
	descriptionMax = 500
	optionNameMin  = 1
	optionNameMax  = 100
	minOptions     = 2
)

// CreateRequest is a new election as submitted by its creator.
type CreateRequest struct {
	Title          string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	IsPublic       bool
	Options        []ballot.Option
	CreatorAddress string
	CreatorID      *int64
}

// validate checks every field and collects all problems. On success it returns the
// normalized input ready for the store.
func (r CreateRequest) validate() (ballot.ElectionInput, error) {
	fields := make(map[string]string)

	title := strings.TrimSpace(r.Title)
	if n := utf8.RuneCountInString(title); n < titleMin || n > titleMax {
		fields["title"] = fmt.Sprintf("must be between %d and %d characters", titleMin, titleMax)
	}
	description := strings.TrimSpace(r.Description)
	if n := utf8.RuneCountInString(description); n < descriptionMin || n > descriptionMax {
		fields["description"] = fmt.Sprintf("must be between %d and %d characters", descriptionMin, descriptionMax)
	}

	if r.StartDate.IsZero() {
		fields["startDate"] = "is required"
	}
	if r.EndDate.IsZero() {
		fields["endDate"] = "is required"
	} else if !r.EndDate.After(r.StartDate) {
		fields["endDate"] = "must be after the start date"
	}

	options := make([]ballot.Option, 0, len(r.Options))
	if len(r.Options) < minOptions {
		fields["options"] = fmt.Sprintf("at least %d options are required", minOptions)
	}
	seen := make(map[int]bool, len(r.Options))
	for i, o := range r.Options {
		name := strings.TrimSpace(o.Name)
		if n := utf8.RuneCountInString(name); n < optionNameMin || n > optionNameMax {
			fields[fmt.Sprintf("options[%d].name", i)] = fmt.Sprintf("must be between %d and %d characters", optionNameMin, optionNameMax)
		}
		if seen[o.ID] {
			fields[fmt.Sprintf("options[%d].id", i)] = "option ids must be unique"
		}
		seen[o.ID] = true
		options = append(options, ballot.Option{ID: o.ID, Name: name, Description: strings.TrimSpace(o.Description)})
	}

	creator, ok := utils.NormalizeAddress(r.CreatorAddress)
	if !ok {
		fields["creatorAddress"] = "must be a valid wallet address"
	}

	if len(fields) > 0 {
		return ballot.ElectionInput{}, &ValidationError{Message: "Invalid election data", Fields: fields}
	}

	return ballot.ElectionInput{
		Title:          title,
		Description:    description,
		StartDate:      r.StartDate.UTC(),
		EndDate:        r.EndDate.UTC(),
		IsPublic:       r.IsPublic,
		Options:        options,
		CreatorAddress: creator,
		CreatorID:      r.CreatorID,
	}, nil
}
