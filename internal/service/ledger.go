package service

import (
	"context"
	"errors"
	"time"

	"parkingcash/internal/dto"
	"parkingcash/internal/model"
	"parkingcash/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Options are the settings shared by the cash and pending services.
type Options struct {
	// ChangeFloat is the default amount left in the drawer for the next shift.
	ChangeFloat decimal.Decimal
	// Location is used to render timestamps in responses.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// ledger holds the append path used by every operation that writes a
// CashTransaction. Entries only go into the open session.
type ledger struct {
	repo  repository.CashRepository
	users repository.UserRepository
	now   func() time.Time
	loc   *time.Location
}

func newLedger(repo repository.CashRepository, users repository.UserRepository, opts Options) *ledger {
	l := &ledger{repo: repo, users: users, now: opts.Now, loc: opts.Location}
	if l.now == nil {
		l.now = time.Now
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	return l
}

// openSessionTx returns the open session, share-locked until tx commits.
func (l *ledger) openSessionTx(ctx context.Context, tx *gorm.DB) (*model.CashSession, error) {
	sess, err := l.repo.LockOpenSessionTx(ctx, tx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidState("No hay sesión de caja abierta")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (l *ledger) appendTx(ctx context.Context, tx *gorm.DB, sess *model.CashSession, t *model.CashTransaction) error {
	if !sess.IsOpen() {
		return invalidState("La sesión de caja está cerrada")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CashSessionID = sess.ID
	if t.Timestamp.IsZero() {
		t.Timestamp = l.now()
	}
	return l.repo.CreateTransactionTx(ctx, tx, t)
}

// settle applies the change rule. Cash returns change and must cover the
// amount due; card and transfer are always recorded as paid in full.
func settle(method model.PaymentMethod, due, paid decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !method.Valid() {
		return decimal.Zero, decimal.Zero, validation("Método de pago inválido: %q", method)
	}
	if method != model.PaymentCash {
		return due, decimal.Zero, nil
	}
	if paid.LessThan(due) {
		return decimal.Zero, decimal.Zero, validation(
			"El importe entregado (%s€) es menor que el importe a cobrar (%s€)",
			paid.StringFixed(2), due.StringFixed(2))
	}
	return paid, paid.Sub(due), nil
}

func (l *ledger) username(ctx context.Context, u *model.User, id uuid.UUID) string {
	if u != nil {
		return u.Username
	}
	if id == uuid.Nil || l.users == nil {
		return ""
	}
	if user, err := l.users.FindByID(ctx, id); err == nil {
		return user.Username
	}
	return ""
}

func (l *ledger) fmtTime(t time.Time) string {
	return t.In(l.loc).Format(time.RFC3339)
}

func (l *ledger) fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := l.fmtTime(*t)
	return &s
}

func (l *ledger) transactionResponse(t *model.CashTransaction, username, plate string) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:              t.ID.String(),
		CashSessionID:   t.CashSessionID.String(),
		Timestamp:       l.fmtTime(t.Timestamp),
		TransactionType: string(t.TransactionType),
		AmountDue:       t.AmountDue,
		AmountPaid:      t.AmountPaid,
		ChangeGiven:     t.ChangeGiven,
		PaymentMethod:   string(t.PaymentMethod),
		UserID:          t.UserID.String(),
		Username:        username,
		ProductName:     t.ProductName,
		Notes:           t.Notes,
	}
	if t.StayID != nil {
		id := t.StayID.String()
		resp.StayID = &id
	}
	if plate != "" {
		resp.LicensePlate = &plate
	}
	if t.ProductID != nil {
		id := t.ProductID.String()
		resp.ProductID = &id
	}
	return resp
}

func ptr[T any](v T) *T { return &v }
