package hub

import "fmt"

// Kind names an event on the push channel.
type Kind string

const (
	KindConnect         Kind = "connect"
	KindVote            Kind = "vote"
	KindElectionCreated Kind = "election_created"
	KindElectionError   Kind = "election_error"
)

// Event is the JSON frame delivered to subscribers.
type Event struct {
	Type            Kind   `json:"type"`
	ElectionID      *int64 `json:"electionId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	// CandidateID is the zero-based option position of a vote.
	CandidateID *int   `json:"candidateId,omitempty"`
	Message     string `json:"message,omitempty"`
}

func Connect() Event {
	return Event{Type: KindConnect, Message: "Connected to WebSocket server"}
}

// Vote describes a recorded vote. The message names the chosen option.
func Vote(electionID int64, electionTitle string, optionIndex int, optionName, txHash string) Event {
	return Event{
		Type:            KindVote,
		ElectionID:      &electionID,
		TransactionHash: txHash,
		CandidateID:     &optionIndex,
		Message:         fmt.Sprintf("Vote cast for candidate %q in election %q", optionName, electionTitle),
	}
}

func ElectionCreated(electionID int64, title, txHash string) Event {
	return Event{
		Type:            KindElectionCreated,
		ElectionID:      &electionID,
		TransactionHash: txHash,
		Message:         fmt.Sprintf("Election %q has been deployed to the blockchain", title),
	}
}

func ElectionError(electionID int64, message string) Event {
	return Event{Type: KindElectionError, ElectionID: &electionID, Message: message}
}
