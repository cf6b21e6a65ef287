package repository

import (
	"context"

	"parkingcash/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashRepository is the data access contract for sessions and the ledger.
// Methods with a Tx suffix must run inside the caller's transaction; they
// take the row locks that serialize appends against close.
type CashRepository interface {
	CreateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	FindOpenSession(ctx context.Context) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	FindLastClosedSession(ctx context.Context) (*model.CashSession, error)
	ListClosedSessions(ctx context.Context, limit int) ([]model.CashSession, error)

	// LockOpenSessionTx takes a shared lock on the open session. Appends hold
	// it until commit so that close waits for them.
	LockOpenSessionTx(ctx context.Context, tx *gorm.DB) (*model.CashSession, error)
	// LockSessionTx takes an exclusive lock on a session by id.
	LockSessionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	// CloseSessionTx persists the closing figures only if the row is still open.
	CloseSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error

	CreateTransactionTx(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error)
	LockTransactionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error)
	DeleteTransactionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// ListTransactions returns the ledger newest first, with operator and vehicle preloaded.
	ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.CashTransaction, error)
	ListTransactionsTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) DB() *gorm.DB { return r.db }

// ── Sessions ─────────────────────────────────────────────────────────────────

func (r *cashRepo) CreateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	err := tx.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err) {
		return ErrOpenSessionExists
	}
	return err
}

func (r *cashRepo) FindOpenSession(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Preload("OpenedBy").
		Where("status = ?", model.SessionOpen).First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cashRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Preload("OpenedBy").Preload("ClosedBy").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cashRepo) FindLastClosedSession(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SessionClosed).
		Order("closed_at DESC").First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cashRepo) ListClosedSessions(ctx context.Context, limit int) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := r.db.WithContext(ctx).
		Preload("OpenedBy").Preload("ClosedBy").Preload("Transactions").
		Where("status = ?", model.SessionClosed).
		Order("closed_at DESC").Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *cashRepo) LockOpenSessionTx(ctx context.Context, tx *gorm.DB) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}).
		Where("status = ?", model.SessionOpen).First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cashRepo) LockSessionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cashRepo) CloseSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	res := tx.WithContext(ctx).Model(s).
		Where("status = ?", model.SessionOpen).
		Select(
			"status", "closed_by_user_id", "closed_at",
			"expected_cash", "expected_card", "expected_transfer", "expected_final_amount",
			"actual_cash", "actual_card", "actual_transfer", "actual_final_amount",
			"cash_breakdown", "suggested_withdrawal", "actual_withdrawal",
			"remaining_in_register", "difference", "cash_difference", "notes",
		).
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ── Ledger ───────────────────────────────────────────────────────────────────

func (r *cashRepo) CreateTransactionTx(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (r *cashRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error) {
	var t model.CashTransaction
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *cashRepo) LockTransactionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	var t model.CashTransaction
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *cashRepo) DeleteTransactionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	res := tx.WithContext(ctx).Delete(&model.CashTransaction{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cashRepo) ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	var txs []model.CashTransaction
	err := r.db.WithContext(ctx).
		Preload("User").Preload("Stay.Vehicle").
		Where("cash_session_id = ?", sessionID).
		Order("timestamp DESC").
		Find(&txs).Error
	return txs, err
}

func (r *cashRepo) ListTransactionsTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	var txs []model.CashTransaction
	err := tx.WithContext(ctx).
		Where("cash_session_id = ?", sessionID).
		Order("timestamp DESC").
		Find(&txs).Error
	return txs, err
}
