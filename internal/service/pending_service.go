package service

import (
	"context"
	"errors"

	"parkingcash/internal/dto"
	"parkingcash/internal/model"
	"parkingcash/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PendingService lists revenue events from stays that are not yet in the
// ledger and registers them exactly once.
type PendingService interface {
	List(ctx context.Context) (*dto.PendingListResponse, error)
	Register(ctx context.Context, stayID, operatorID uuid.UUID, req dto.RegisterPendingRequest) (*dto.TransactionResponse, error)
}

type pendingService struct {
	*ledger
	stays repository.StayRepository
}

func NewPendingService(
	repo repository.CashRepository,
	stays repository.StayRepository,
	users repository.UserRepository,
	opts Options,
) PendingService {
	return &pendingService{ledger: newLedger(repo, users, opts), stays: stays}
}

// pendingCharge decides which revenue event a stay owes the register, if any.
// List and Register both go through it.
func pendingCharge(s *model.Stay) (model.TransactionType, decimal.Decimal, bool) {
	switch {
	case s.Status == model.StayActive && s.PrepaidAmount != nil && !s.PrepaymentCashRegistered:
		return model.TxPrepayment, *s.PrepaidAmount, true
	case s.Status == model.StayCompleted && s.FinalPrice != nil && !s.CashRegistered:
		return model.TxCheckout, checkoutDue(s), true
	}
	return "", decimal.Zero, false
}

// checkoutDue is the final price, minus the advance only if the advance itself
// went through the register. Never negative.
func checkoutDue(s *model.Stay) decimal.Decimal {
	due := *s.FinalPrice
	if s.PrepaymentCashRegistered && s.PrepaidAmount != nil {
		due = due.Sub(*s.PrepaidAmount)
	}
	return decimal.Max(decimal.Zero, due)
}

// alreadySettled reports a stay whose event exists but has been registered.
func alreadySettled(s *model.Stay) bool {
	switch s.Status {
	case model.StayActive:
		return s.PrepaidAmount != nil && s.PrepaymentCashRegistered
	case model.StayCompleted:
		return s.FinalPrice != nil && s.CashRegistered
	}
	return false
}

func (s *pendingService) List(ctx context.Context) (*dto.PendingListResponse, error) {
	prepayments, err := s.stays.ListPendingPrepayments(ctx)
	if err != nil {
		return nil, err
	}
	checkouts, err := s.stays.ListPendingCheckouts(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.PendingListResponse{Items: []dto.PendingItem{}, Total: decimal.Zero}
	for _, stays := range [][]model.Stay{prepayments, checkouts} {
		for i := range stays {
			stay := &stays[i]
			kind, amount, ok := pendingCharge(stay)
			if !ok {
				continue
			}
			item := dto.PendingItem{
				StayID:          stay.ID.String(),
				LicensePlate:    stay.LicensePlate(),
				TransactionType: string(kind),
				Amount:          amount,
			}
			if kind == model.TxPrepayment {
				item.Timestamp = s.fmtTimePtr(stay.CheckInTime)
			} else {
				item.Timestamp = s.fmtTimePtr(stay.CheckOutTime)
			}
			if stay.User != nil {
				item.UserName = ptr(stay.User.Username)
			}
			resp.Items = append(resp.Items, item)
			resp.Total = resp.Total.Add(amount)
		}
	}
	resp.Count = len(resp.Items)
	return resp, nil
}

// ── Register ──────────────────────────────────────────────────────────────────
// Session share lock → stay row lock → conditional flag flip → ledger append,
// all in one transaction. A concurrent second caller either blocks on the stay
// lock and then sees the flag set, or loses the conditional update.

func (s *pendingService) Register(ctx context.Context, stayID, operatorID uuid.UUID, req dto.RegisterPendingRequest) (*dto.TransactionResponse, error) {
	method := model.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, validation("Método de pago inválido: %q", req.PaymentMethod)
	}
	if !req.AmountPaid.IsPositive() {
		return nil, validation("El importe entregado debe ser mayor que cero")
	}

	var (
		entry *model.CashTransaction
		plate string
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.openSessionTx(ctx, tx)
		if err != nil {
			return err
		}

		stay, err := s.stays.LockStayTx(ctx, tx, stayID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Estancia no encontrada")
		}
		if err != nil {
			return err
		}

		kind, due, ok := pendingCharge(stay)
		if !ok {
			if alreadySettled(stay) {
				return conflict("El cobro de esta estancia ya está registrado en caja")
			}
			return notFound("La estancia no tiene cobros pendientes")
		}

		paid, change, err := settle(method, due, req.AmountPaid)
		if err != nil {
			return err
		}

		switch kind {
		case model.TxPrepayment:
			err = s.stays.MarkPrepaymentRegisteredTx(ctx, tx, stay.ID)
		case model.TxCheckout:
			err = s.stays.MarkCheckoutRegisteredTx(ctx, tx, stay.ID, method, paid, change)
		}
		if errors.Is(err, repository.ErrAlreadySettled) {
			return conflict("El cobro de esta estancia ya está registrado en caja")
		}
		if err != nil {
			return err
		}

		entry = &model.CashTransaction{
			TransactionType: kind,
			StayID:          &stay.ID,
			AmountDue:       due,
			AmountPaid:      paid,
			ChangeGiven:     change,
			PaymentMethod:   method,
			UserID:          operatorID,
		}
		plate = stay.LicensePlate()
		return s.appendTx(ctx, tx, sess, entry)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", entry.ID.String()).
		Str("stay_id", stayID.String()).
		Str("transaction_type", string(entry.TransactionType)).
		Str("payment_method", string(method)).
		Str("amount_due", entry.AmountDue.StringFixed(2)).
		Msg("caja: cobro pendiente registrado")

	resp := s.transactionResponse(entry, s.username(ctx, nil, operatorID), plate)
	return &resp, nil
}
