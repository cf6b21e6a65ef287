package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parkingcash/internal/dto"
	"parkingcash/internal/model"
	"parkingcash/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

type CashService interface {
	Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	Close(ctx context.Context, sessionID, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	ActiveSession(ctx context.Context) (*dto.ActiveSessionResponse, error)
	LastClosing(ctx context.Context) (*dto.LastClosingResponse, error)
	PreCloseInfo(ctx context.Context, targetFloat *decimal.Decimal) (*dto.PreCloseInfoResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	ClosedSessions(ctx context.Context, limit int) ([]dto.ClosedSessionResponse, error)

	RegisterWithdrawal(ctx context.Context, operatorID uuid.UUID, req dto.WithdrawalRequest) (*dto.TransactionResponse, error)
	RegisterProductSale(ctx context.Context, operatorID uuid.UUID, req dto.ProductSaleRequest) (*dto.ProductSaleResponse, error)
	ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]dto.TransactionResponse, error)
	UndoTransaction(ctx context.Context, transactionID, operatorID uuid.UUID) error
}

type cashService struct {
	*ledger
	stays       repository.StayRepository
	products    repository.ProductRepository
	pending     PendingService
	notifier    SessionClosedNotifier
	changeFloat decimal.Decimal
}

// NewCashService wires the session state machine. notifier may be nil.
func NewCashService(
	repo repository.CashRepository,
	stays repository.StayRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	pending PendingService,
	notifier SessionClosedNotifier,
	opts Options,
) CashService {
	return &cashService{
		ledger:      newLedger(repo, users, opts),
		stays:       stays,
		products:    products,
		pending:     pending,
		notifier:    notifier,
		changeFloat: opts.ChangeFloat,
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if !req.InitialAmount.IsPositive() {
		return nil, validation("El importe inicial debe ser mayor que cero")
	}

	// Friendly early answer; the unique index is what actually enforces it.
	existing, err := s.repo.FindOpenSession(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("Ya existe una sesión de caja abierta")
	}

	now := s.now()
	sess := &model.CashSession{
		ID:             uuid.New(),
		Status:         model.SessionOpen,
		InitialAmount:  req.InitialAmount,
		OpenedByUserID: operatorID,
		OpenedAt:       now,
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateSessionTx(ctx, tx, sess); err != nil {
			return err
		}
		return s.repo.CreateTransactionTx(ctx, tx, &model.CashTransaction{
			ID:              uuid.New(),
			CashSessionID:   sess.ID,
			Timestamp:       now,
			TransactionType: model.TxInitial,
			AmountDue:       req.InitialAmount,
			AmountPaid:      req.InitialAmount,
			ChangeGiven:     decimal.Zero,
			PaymentMethod:   model.PaymentCash,
			UserID:          operatorID,
			Notes:           ptr("Fondo inicial de caja"),
		})
	})
	if errors.Is(err, repository.ErrOpenSessionExists) {
		return nil, conflict("Ya existe una sesión de caja abierta")
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("initial_amount", sess.InitialAmount.StringFixed(2)).
		Msg("caja: sesión abierta")
	return s.sessionResponse(ctx, sess), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Expected amounts are computed inside the same transaction that holds the
// session row lock, so no append can land between the computation and the
// status change.

func (s *cashService) Close(ctx context.Context, sessionID, operatorID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	for name, v := range map[string]decimal.Decimal{
		"actual_cash":           req.ActualCash,
		"actual_card":           req.ActualCard,
		"actual_transfer":       req.ActualTransfer,
		"actual_withdrawal":     req.ActualWithdrawal,
		"remaining_in_register": req.RemainingInRegister,
	} {
		if v.IsNegative() {
			return nil, validation("%s no puede ser negativo", name)
		}
	}
	if _, err := breakdownTotal(req.CashBreakdown); err != nil {
		return nil, err
	}
	target := s.changeFloat
	if req.TargetFloat != nil {
		if req.TargetFloat.IsNegative() {
			return nil, validation("target_float no puede ser negativo")
		}
		target = *req.TargetFloat
	}

	var closed *model.CashSession
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.repo.LockSessionTx(ctx, tx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Sesión de caja no encontrada")
		}
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return invalidState("La sesión de caja ya está cerrada")
		}

		txs, err := s.repo.ListTransactionsTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		expected := ComputeExpected(sess.InitialAmount, txs)
		actual := amounts(req.ActualCash, req.ActualCard, req.ActualTransfer)
		difference := actual.Total.Sub(expected.Total)
		cashDifference := actual.Cash.Sub(expected.Cash)
		suggested := suggestedWithdrawal(expected.Cash, target)
		now := s.now()

		sess.Status = model.SessionClosed
		sess.ClosedByUserID = &operatorID
		sess.ClosedAt = &now
		sess.ExpectedCash = &expected.Cash
		sess.ExpectedCard = &expected.Card
		sess.ExpectedTransfer = &expected.Transfer
		sess.ExpectedFinalAmount = &expected.Total
		sess.ActualCash = &actual.Cash
		sess.ActualCard = &actual.Card
		sess.ActualTransfer = &actual.Transfer
		sess.ActualFinalAmount = &actual.Total
		sess.CashBreakdown = req.CashBreakdown
		sess.SuggestedWithdrawal = &suggested
		sess.ActualWithdrawal = &req.ActualWithdrawal
		sess.RemainingInRegister = &req.RemainingInRegister
		sess.Difference = &difference
		sess.CashDifference = &cashDifference
		sess.Notes = req.Notes

		err = s.repo.CloseSessionTx(ctx, tx, sess)
		if errors.Is(err, repository.ErrStaleState) {
			return invalidState("La sesión de caja ya está cerrada")
		}
		if err != nil {
			return err
		}
		closed = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", closed.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("expected_total", closed.ExpectedFinalAmount.StringFixed(2)).
		Str("actual_total", closed.ActualFinalAmount.StringFixed(2)).
		Str("difference", closed.Difference.StringFixed(2)).
		Msg("caja: sesión cerrada")

	s.notifyClosed(ctx, closed)
	return s.sessionResponse(ctx, closed), nil
}

// notifyClosed hands the summary off after commit. Failures never reach the caller.
func (s *cashService) notifyClosed(ctx context.Context, sess *model.CashSession) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session_id", sess.ID.String()).
				Msg("caja: pánico al notificar el cierre")
		}
	}()
	if err := s.notifier.NotifySessionClosed(ctx, s.closedEvent(ctx, sess)); err != nil {
		log.Error().Err(err).Str("session_id", sess.ID.String()).
			Msg("caja: no se pudo notificar el cierre")
	}
}

func (s *cashService) closedEvent(ctx context.Context, sess *model.CashSession) dto.SessionClosedEvent {
	breakdownSum, _ := breakdownTotal(sess.CashBreakdown)
	ev := dto.SessionClosedEvent{
		SessionID:           sess.ID.String(),
		OpenedBy:            s.username(ctx, sess.OpenedBy, sess.OpenedByUserID),
		OpenedAt:            s.fmtTime(sess.OpenedAt),
		InitialAmount:       sess.InitialAmount,
		Expected:            amounts(deref(sess.ExpectedCash), deref(sess.ExpectedCard), deref(sess.ExpectedTransfer)),
		Actual:              amounts(deref(sess.ActualCash), deref(sess.ActualCard), deref(sess.ActualTransfer)),
		Difference:          deref(sess.Difference),
		CashDifference:      deref(sess.CashDifference),
		CashBreakdown:       sess.CashBreakdown,
		CashBreakdownTotal:  breakdownSum,
		SuggestedWithdrawal: deref(sess.SuggestedWithdrawal),
		ActualWithdrawal:    deref(sess.ActualWithdrawal),
		RemainingInRegister: deref(sess.RemainingInRegister),
		Notes:               sess.Notes,
	}
	if sess.ClosedByUserID != nil {
		ev.ClosedBy = s.username(ctx, sess.ClosedBy, *sess.ClosedByUserID)
	}
	if sess.ClosedAt != nil {
		ev.ClosedAt = s.fmtTime(*sess.ClosedAt)
	}
	return ev
}

// ── Read models ───────────────────────────────────────────────────────────────

func (s *cashService) ActiveSession(ctx context.Context) (*dto.ActiveSessionResponse, error) {
	sess, err := s.repo.FindOpenSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("No hay sesión de caja abierta")
	}
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	expected := ComputeExpected(sess.InitialAmount, txs)
	cashIn, withdrawals := cashFlow(txs)

	pendingCount := 0
	if s.pending != nil {
		if p, err := s.pending.List(ctx); err == nil {
			pendingCount = p.Count
		} else {
			log.Warn().Err(err).Msg("caja: no se pudieron contar los cobros pendientes")
		}
	}

	return &dto.ActiveSessionResponse{
		ID:            sess.ID.String(),
		OpenedBy:      s.username(ctx, sess.OpenedBy, sess.OpenedByUserID),
		OpenedAt:      s.fmtTime(sess.OpenedAt),
		InitialAmount: sess.InitialAmount,
		CashIn:        cashIn,
		Withdrawals:   withdrawals,
		ExpectedCash:  expected.Cash,
		Expected:      expected,
		PendingCount:  pendingCount,
	}, nil
}

// LastClosing suggests the next opening float: what was left in the drawer at
// the last close, or the configured float when there is no history.
func (s *cashService) LastClosing(ctx context.Context) (*dto.LastClosingResponse, error) {
	sess, err := s.repo.FindLastClosedSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return &dto.LastClosingResponse{SuggestedInitial: s.changeFloat}, nil
	}
	if err != nil {
		return nil, err
	}
	resp := &dto.LastClosingResponse{
		SessionID:           ptr(sess.ID.String()),
		ClosedAt:            s.fmtTimePtr(sess.ClosedAt),
		RemainingInRegister: sess.RemainingInRegister,
		SuggestedInitial:    s.changeFloat,
	}
	if sess.RemainingInRegister != nil && sess.RemainingInRegister.IsPositive() {
		resp.SuggestedInitial = *sess.RemainingInRegister
	}
	return resp, nil
}

func (s *cashService) PreCloseInfo(ctx context.Context, targetFloat *decimal.Decimal) (*dto.PreCloseInfoResponse, error) {
	target := s.changeFloat
	if targetFloat != nil {
		if targetFloat.IsNegative() {
			return nil, validation("target_float no puede ser negativo")
		}
		target = *targetFloat
	}

	sess, err := s.repo.FindOpenSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("No hay sesión de caja abierta")
	}
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	expected := ComputeExpected(sess.InitialAmount, txs)

	resp := &dto.PreCloseInfoResponse{
		SessionID:           sess.ID.String(),
		InitialAmount:       sess.InitialAmount,
		Expected:            expected,
		TargetFloat:         target,
		SuggestedWithdrawal: suggestedWithdrawal(expected.Cash, target),
	}
	if s.pending != nil {
		p, err := s.pending.List(ctx)
		if err != nil {
			return nil, err
		}
		resp.PendingCount = p.Count
		resp.PendingTotal = p.Total
	}
	return resp, nil
}

func (s *cashService) GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	sess, err := s.repo.FindSessionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("Sesión de caja no encontrada")
	}
	if err != nil {
		return nil, err
	}
	return s.sessionResponse(ctx, sess), nil
}

func (s *cashService) ClosedSessions(ctx context.Context, limit int) ([]dto.ClosedSessionResponse, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sessions, err := s.repo.ListClosedSessions(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ClosedSessionResponse, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		expected := ComputeExpected(sess.InitialAmount, sess.Transactions)
		cashIn, withdrawals := cashFlow(sess.Transactions)
		actual := amounts(deref(sess.ActualCash), deref(sess.ActualCard), deref(sess.ActualTransfer))
		row := dto.ClosedSessionResponse{
			ID:                  sess.ID.String(),
			OpenedBy:            s.username(ctx, sess.OpenedBy, sess.OpenedByUserID),
			OpenedAt:            s.fmtTime(sess.OpenedAt),
			InitialAmount:       sess.InitialAmount,
			CashIn:              cashIn,
			Withdrawals:         withdrawals,
			ExpectedCash:        expected.Cash,
			Expected:            expected,
			Actual:              actual,
			CashDifference:      actual.Cash.Sub(expected.Cash),
			Difference:          actual.Total.Sub(expected.Total),
			ActualWithdrawal:    sess.ActualWithdrawal,
			RemainingInRegister: sess.RemainingInRegister,
			CashBreakdown:       sess.CashBreakdown,
			Notes:               sess.Notes,
		}
		if sess.ClosedByUserID != nil {
			row.ClosedBy = s.username(ctx, sess.ClosedBy, *sess.ClosedByUserID)
		}
		if sess.ClosedAt != nil {
			row.ClosedAt = s.fmtTime(*sess.ClosedAt)
		}
		out = append(out, row)
	}
	return out, nil
}

// ── Direct entries ────────────────────────────────────────────────────────────

func (s *cashService) RegisterWithdrawal(ctx context.Context, operatorID uuid.UUID, req dto.WithdrawalRequest) (*dto.TransactionResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, validation("El importe de la retirada debe ser mayor que cero")
	}

	entry := &model.CashTransaction{
		TransactionType: model.TxWithdrawal,
		AmountDue:       req.Amount,
		AmountPaid:      req.Amount,
		ChangeGiven:     decimal.Zero,
		PaymentMethod:   model.PaymentCash,
		UserID:          operatorID,
		Notes:           req.Notes,
	}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.openSessionTx(ctx, tx)
		if err != nil {
			return err
		}
		return s.appendTx(ctx, tx, sess, entry)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("transaction_id", entry.ID.String()).
		Str("amount", req.Amount.StringFixed(2)).Msg("caja: retirada registrada")
	resp := s.transactionResponse(entry, s.username(ctx, nil, operatorID), "")
	return &resp, nil
}

func (s *cashService) RegisterProductSale(ctx context.Context, operatorID uuid.UUID, req dto.ProductSaleRequest) (*dto.ProductSaleResponse, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, validation("La cantidad debe ser al menos 1")
	}
	method := model.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = model.PaymentCash
	}
	if !method.Valid() {
		return nil, validation("Método de pago inválido: %q", req.PaymentMethod)
	}

	var (
		name      string
		unitPrice decimal.Decimal
		productID *uuid.UUID
	)
	switch {
	case req.ProductID != nil:
		id, err := uuid.Parse(*req.ProductID)
		if err != nil {
			return nil, validation("product_id inválido")
		}
		p, err := s.products.FindActiveByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Producto no encontrado o inactivo")
		}
		if err != nil {
			return nil, err
		}
		name, unitPrice, productID = p.Name, p.Price, &p.ID
		if req.UnitPrice != nil {
			unitPrice = *req.UnitPrice
		}
	case req.ProductName != nil && strings.TrimSpace(*req.ProductName) != "" && req.UnitPrice != nil:
		name, unitPrice = strings.TrimSpace(*req.ProductName), *req.UnitPrice
	default:
		return nil, validation("Indique product_id, o product_name y unit_price")
	}
	if !unitPrice.IsPositive() {
		return nil, validation("El precio unitario debe ser mayor que cero")
	}

	total := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	paid, change, err := settle(method, total, total)
	if err != nil {
		return nil, err
	}
	notes := fmt.Sprintf("%dx %s @ %s€", qty, name, unitPrice.StringFixed(2))
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		notes += " · " + strings.TrimSpace(*req.Notes)
	}

	entry := &model.CashTransaction{
		TransactionType: model.TxProductSale,
		AmountDue:       total,
		AmountPaid:      paid,
		ChangeGiven:     change,
		PaymentMethod:   method,
		UserID:          operatorID,
		ProductID:       productID,
		ProductName:     &name,
		Notes:           &notes,
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.openSessionTx(ctx, tx)
		if err != nil {
			return err
		}
		return s.appendTx(ctx, tx, sess, entry)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("transaction_id", entry.ID.String()).Str("product", name).
		Int("quantity", qty).Str("total", total.StringFixed(2)).Msg("caja: venta de producto registrada")
	return &dto.ProductSaleResponse{
		Transaction: s.transactionResponse(entry, s.username(ctx, nil, operatorID), ""),
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   unitPrice,
	}, nil
}

func (s *cashService) ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]dto.TransactionResponse, error) {
	if _, err := s.repo.FindSessionByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Sesión de caja no encontrada")
		}
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransactionResponse, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		plate := ""
		if t.Stay != nil {
			plate = t.Stay.LicensePlate()
		}
		out = append(out, s.transactionResponse(t, s.username(ctx, t.User, t.UserID), plate))
	}
	return out, nil
}

// ── Undo ──────────────────────────────────────────────────────────────────────
// Deleting an entry and clearing the flag it set happen together, so the
// revenue event shows up again in the pending list with the same amount.

func (s *cashService) UndoTransaction(ctx context.Context, transactionID, operatorID uuid.UUID) error {
	t, err := s.repo.FindTransactionByID(ctx, transactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Transacción no encontrada")
	}
	if err != nil {
		return err
	}
	if t.TransactionType == model.TxInitial {
		return invalidState("El fondo inicial no se puede deshacer")
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.repo.LockOpenSessionTx(ctx, tx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if sess == nil || sess.ID != t.CashSessionID {
			return invalidState("No se pueden deshacer transacciones de una sesión cerrada")
		}

		locked, err := s.repo.LockTransactionTx(ctx, tx, transactionID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Transacción no encontrada")
		}
		if err != nil {
			return err
		}

		if locked.StayID != nil {
			if err := s.revertSettlementTx(ctx, tx, locked); err != nil {
				return err
			}
		}
		err = s.repo.DeleteTransactionTx(ctx, tx, locked.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Transacción no encontrada")
		}
		return err
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", transactionID.String()).
		Str("transaction_type", string(t.TransactionType)).
		Str("operator_id", operatorID.String()).
		Msg("caja: transacción deshecha")
	return nil
}

func (s *cashService) revertSettlementTx(ctx context.Context, tx *gorm.DB, t *model.CashTransaction) error {
	stay, err := s.stays.LockStayTx(ctx, tx, *t.StayID)
	if errors.Is(err, repository.ErrNotFound) {
		// Stay removed on the stay side; nothing to reopen.
		return nil
	}
	if err != nil {
		return err
	}

	switch t.TransactionType {
	case model.TxPrepayment:
		// A completed stay only shows up as a pending checkout, never as a
		// pending prepayment, so a reopened advance would drop out of the
		// pending list for good.
		if stay.CashRegistered {
			return invalidState("Deshaga primero el cobro de salida de esta estancia")
		}
		err = s.stays.ClearPrepaymentRegisteredTx(ctx, tx, stay.ID)
	case model.TxCheckout:
		err = s.stays.ClearCheckoutRegisteredTx(ctx, tx, stay.ID)
	default:
		return nil
	}
	if errors.Is(err, repository.ErrStaleState) {
		log.Warn().Str("stay_id", stay.ID.String()).Str("transaction_id", t.ID.String()).
			Msg("caja: la estancia ya no estaba marcada como cobrada")
		return nil
	}
	return err
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cashService) sessionResponse(ctx context.Context, sess *model.CashSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:                  sess.ID.String(),
		Status:              sess.Status,
		InitialAmount:       sess.InitialAmount,
		OpenedBy:            s.username(ctx, sess.OpenedBy, sess.OpenedByUserID),
		OpenedAt:            s.fmtTime(sess.OpenedAt),
		ClosedAt:            s.fmtTimePtr(sess.ClosedAt),
		CashBreakdown:       sess.CashBreakdown,
		Difference:          sess.Difference,
		CashDifference:      sess.CashDifference,
		SuggestedWithdrawal: sess.SuggestedWithdrawal,
		ActualWithdrawal:    sess.ActualWithdrawal,
		RemainingInRegister: sess.RemainingInRegister,
		Notes:               sess.Notes,
	}
	if sess.ClosedByUserID != nil {
		resp.ClosedBy = ptr(s.username(ctx, sess.ClosedBy, *sess.ClosedByUserID))
	}
	if sess.ExpectedFinalAmount != nil {
		e := amounts(deref(sess.ExpectedCash), deref(sess.ExpectedCard), deref(sess.ExpectedTransfer))
		resp.Expected = &e
	}
	if sess.ActualFinalAmount != nil {
		a := amounts(deref(sess.ActualCash), deref(sess.ActualCard), deref(sess.ActualTransfer))
		resp.Actual = &a
	}
	return resp
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
