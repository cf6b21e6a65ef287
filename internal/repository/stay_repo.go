package repository

import (
	"context"

	"parkingcash/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StayRepository reads stays for the pending list and owns the writes to the
// settlement columns. Every Mark/Clear is conditional on the current flag value.
type StayRepository interface {
	// ListPendingPrepayments: active stays with an advance payment not yet in the ledger.
	ListPendingPrepayments(ctx context.Context) ([]model.Stay, error)
	// ListPendingCheckouts: completed stays with a final price not yet in the ledger.
	ListPendingCheckouts(ctx context.Context) ([]model.Stay, error)

	LockStayTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Stay, error)
	MarkPrepaymentRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkCheckoutRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, method model.PaymentMethod, paid, change decimal.Decimal) error
	ClearPrepaymentRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ClearCheckoutRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type stayRepo struct{ db *gorm.DB }

func NewStayRepository(db *gorm.DB) StayRepository { return &stayRepo{db: db} }

func (r *stayRepo) ListPendingPrepayments(ctx context.Context) ([]model.Stay, error) {
	var stays []model.Stay
	err := r.db.WithContext(ctx).
		Preload("Vehicle").Preload("User").
		Where("status = ? AND prepaid_amount IS NOT NULL AND prepayment_cash_registered = false", model.StayActive).
		Order("check_in_time ASC").
		Find(&stays).Error
	return stays, err
}

func (r *stayRepo) ListPendingCheckouts(ctx context.Context) ([]model.Stay, error) {
	var stays []model.Stay
	err := r.db.WithContext(ctx).
		Preload("Vehicle").Preload("User").
		Where("status = ? AND final_price IS NOT NULL AND cash_registered = false", model.StayCompleted).
		Order("check_out_time ASC").
		Find(&stays).Error
	return stays, err
}

func (r *stayRepo) LockStayTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Stay, error) {
	var s model.Stay
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Vehicle").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *stayRepo) MarkPrepaymentRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return flip(tx.WithContext(ctx).Model(&model.Stay{}).
		Where("id = ? AND prepayment_cash_registered = false", id).
		Update("prepayment_cash_registered", true), ErrAlreadySettled)
}

func (r *stayRepo) MarkCheckoutRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, method model.PaymentMethod, paid, change decimal.Decimal) error {
	return flip(tx.WithContext(ctx).Model(&model.Stay{}).
		Where("id = ? AND cash_registered = false", id).
		Updates(map[string]interface{}{
			"cash_registered": true,
			"payment_method":  method,
			"amount_paid":     paid,
			"change_given":    change,
		}), ErrAlreadySettled)
}

func (r *stayRepo) ClearPrepaymentRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return flip(tx.WithContext(ctx).Model(&model.Stay{}).
		Where("id = ? AND prepayment_cash_registered = true", id).
		Update("prepayment_cash_registered", false), ErrStaleState)
}

func (r *stayRepo) ClearCheckoutRegisteredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return flip(tx.WithContext(ctx).Model(&model.Stay{}).
		Where("id = ? AND cash_registered = true", id).
		Updates(map[string]interface{}{
			"cash_registered": false,
			"payment_method":  nil,
			"amount_paid":     nil,
			"change_given":    nil,
		}), ErrStaleState)
}

// flip turns a conditional update that matched nothing into onMiss.
func flip(res *gorm.DB, onMiss error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return onMiss
	}
	return nil
}
