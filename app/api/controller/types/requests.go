package types

// OptionRequest is one choice of a new election.
type OptionRequest struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateElectionRequest is the body of POST /api/elections. Dates are RFC 3339 strings.
type CreateElectionRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	IsPublic       *bool           `json:"isPublic"`
	Options        []OptionRequest `json:"options"`
	CreatorAddress string          `json:"creatorAddress"`
}

// StatusRequest is the body of PUT /api/elections/{id}/status.
type StatusRequest struct {
	Status          string  `json:"status"`
	ContractAddress *string `json:"contractAddress"`
	ChainElectionID *uint64 `json:"chainElectionId"`
	TransactionHash *string `json:"transactionHash"`
}

// VoteRequest is the body of POST /api/votes. OptionID is the zero-based option position.
type VoteRequest struct {
	ElectionID      int64  `json:"electionId"`
	VoterAddress    string `json:"voterAddress"`
	OptionID        *int   `json:"optionId"`
	TransactionHash string `json:"transactionHash"`
}

// CreateUserRequest registers an off-chain account.
type CreateUserRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	WalletAddress string `json:"walletAddress"`
}

// LoginRequest contains credentials for session authentication
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type WalletRequest struct {
	WalletAddress string `json:"walletAddress"`
}
