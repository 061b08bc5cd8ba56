package repository

import (
	"context"
	"fmt"

	"credit_ledger/internal/model"
)

// TransferRepository defines operations for the append-only transfer ledger
type TransferRepository interface {
	Create(ctx context.Context, transfer *model.Transfer) error
	FindByUser(ctx context.Context, userID int, limit int) ([]model.Transfer, error)
}

type transferRepository struct {
	db DB
}

// NewTransferRepository creates a new TransferRepository
func NewTransferRepository(db DB) TransferRepository {
	return &transferRepository{db: db}
}

// Create appends a transfer record. Records are never updated or deleted.
func (r *transferRepository) Create(ctx context.Context, t *model.Transfer) error {
	sql := `INSERT INTO transfers (id, sender_id, recipient_id, amount, note, created_at)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := r.db.QueryRow(ctx, sql, t.ID, t.SenderID, t.RecipientID, t.Amount, t.Note, t.CreatedAt).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// FindByUser retrieves transfers where the user is sender or recipient,
// newest first, with usernames joined in for display.
func (r *transferRepository) FindByUser(ctx context.Context, userID int, limit int) ([]model.Transfer, error) {
	sql := `SELECT t.id, t.sender_id, t.recipient_id, s.username, rc.username, t.amount, t.note, t.created_at
            FROM transfers t
            JOIN users s ON t.sender_id = s.id
            JOIN users rc ON t.recipient_id = rc.id
            WHERE t.sender_id = $1 OR t.recipient_id = $1
            ORDER BY t.created_at DESC
            LIMIT $2`
	rows, err := r.db.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers by user: %w", err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.SenderUsername,
			&t.RecipientUsername, &t.Amount, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}
	return transfers, nil
}
