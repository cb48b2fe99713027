package ballot

import "time"

const UsersTableName = "users"

type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  []byte    `json:"-"`
	WalletAddress *string   `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

type UserInput struct {
	Username      string
	PasswordHash  []byte
	WalletAddress *string
}
