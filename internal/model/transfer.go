package model

import "time"

// Transfer is an append-only record of credits moving between two users.
// There is no balance column anywhere; the ledger is history, not accounting.
type Transfer struct {
	ID                string    `json:"id"`
	SenderID          int       `json:"sender_id"`
	RecipientID       int       `json:"recipient_id"`
	SenderUsername    string    `json:"sender"`
	RecipientUsername string    `json:"recipient"`
	Amount            int64     `json:"amount"`
	Note              *string   `json:"note,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// TransferRequest is the payload for POST /api/transactions/transfer.
// Amount is bound as a float and rounded to an integer by the service.
type TransferRequest struct {
	To     string  `json:"to" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
	Note   *string `json:"note"`
}
