package ballot

import "time"

const VotesTableName = "votes"

type Vote struct {
	ID              int64     `json:"id"`
	ElectionID      int64     `json:"electionId"`
	VoterAddress    string    `json:"voterAddress"`
	OptionID        int       `json:"optionId"` // zero-based position in Election.Options
	TransactionHash string    `json:"transactionHash"`
	Timestamp       time.Time `json:"timestamp"`
}

type VoteInput struct {
	ElectionID      int64
	VoterAddress    string
	OptionID        int
	TransactionHash string
}
