package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"credit_ledger/internal/model"
	"credit_ledger/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfTransfer      = errors.New("cannot transfer credits to yourself")
)

const (
	maxNoteLength       = 200
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TransferService records and lists credit transfers. The ledger is
// append-only history; no balance is kept, checked or decremented.
type TransferService interface {
	Transfer(ctx context.Context, senderID int, senderUsername, recipientIdentifier string, amount float64, note *string) (*model.Transfer, error)
	History(ctx context.Context, userID, limit int) ([]model.Transfer, error)
	ListRecipients(ctx context.Context, excludeID int) ([]model.PublicUser, error)
}

type transferService struct {
	transferRepo repository.TransferRepository
	userRepo     repository.UserRepository
	health       StoreHealth
}

// NewTransferService creates a new TransferService
func NewTransferService(transferRepo repository.TransferRepository, userRepo repository.UserRepository, health StoreHealth) TransferService {
	return &transferService{transferRepo: transferRepo, userRepo: userRepo, health: health}
}

// Transfer validates and appends one transfer record. Validation order:
// recipient resolves, sender is not the recipient, amount is a positive
// integer after rounding, note fits the bound.
func (s *transferService) Transfer(ctx context.Context, senderID int, senderUsername, recipientIdentifier string, amount float64, note *string) (*model.Transfer, error) {
	if !s.health.Healthy() {
		return nil, ErrStoreUnavailable
	}

	recipient, err := s.userRepo.FindByIdentifier(ctx, normalizeUsername(recipientIdentifier))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	if recipient.ID == senderID {
		return nil, ErrSelfTransfer
	}

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, validationErr("amount must be a number")
	}
	rounded := int64(math.Round(amount))
	if rounded <= 0 {
		return nil, validationErr("amount must be a positive integer")
	}

	if note != nil {
		trimmed := truncateNote(*note)
		if trimmed == "" {
			note = nil
		} else {
			note = &trimmed
		}
	}

	transfer := &model.Transfer{
		ID:                uuid.NewString(),
		SenderID:          senderID,
		RecipientID:       recipient.ID,
		SenderUsername:    senderUsername,
		RecipientUsername: recipient.Username,
		Amount:            rounded,
		Note:              note,
		CreatedAt:         time.Now(),
	}
	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// History returns transfers the user sent or received, newest first
func (s *transferService) History(ctx context.Context, userID, limit int) ([]model.Transfer, error) {
	if !s.health.Healthy() {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	transfers, err := s.transferRepo.FindByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer history: %w", err)
	}
	return transfers, nil
}

// ListRecipients returns all other users for the recipient picker
func (s *transferService) ListRecipients(ctx context.Context, excludeID int) ([]model.PublicUser, error) {
	if !s.health.Healthy() {
		return nil, ErrStoreUnavailable
	}
	users, err := s.userRepo.ListOthers(ctx, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	recipients := make([]model.PublicUser, 0, len(users))
	for i := range users {
		recipients = append(recipients, users[i].Public())
	}
	return recipients, nil
}

func truncateNote(note string) string {
	runes := []rune(note)
	if len(runes) > maxNoteLength {
		return string(runes[:maxNoteLength])
	}
	return note
}
