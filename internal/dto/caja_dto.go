package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	InitialAmount decimal.Decimal `json:"initial_amount" validate:"gt=0"`
}

type CloseSessionRequest struct {
	ActualCash     decimal.Decimal `json:"actual_cash"     validate:"min=0"`
	ActualCard     decimal.Decimal `json:"actual_card"     validate:"min=0"`
	ActualTransfer decimal.Decimal `json:"actual_transfer" validate:"min=0"`
	// CashBreakdown maps a EUR face value ("50", "0.20") to the counted units.
	CashBreakdown       map[string]int  `json:"cash_breakdown"`
	ActualWithdrawal    decimal.Decimal `json:"actual_withdrawal"     validate:"min=0"`
	RemainingInRegister decimal.Decimal `json:"remaining_in_register" validate:"min=0"`
	Notes               *string         `json:"notes"                 validate:"omitempty,max=1000"`
	// TargetFloat overrides the configured float used for suggested_withdrawal.
	TargetFloat *decimal.Decimal `json:"target_float"`
}

type RegisterPendingRequest struct {
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash card transfer"`
	AmountPaid    decimal.Decimal `json:"amount_paid"    validate:"gt=0"`
}

type WithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Notes  *string         `json:"notes"  validate:"omitempty,max=500"`
}

// ProductSaleRequest sells either a catalog product (ProductID, price taken from
// the catalog unless UnitPrice is set) or a free-form item (ProductName + UnitPrice).
type ProductSaleRequest struct {
	ProductID     *string          `json:"product_id"     validate:"omitempty,uuid"`
	ProductName   *string          `json:"product_name"   validate:"omitempty,min=1,max=120"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	Quantity      int              `json:"quantity"       validate:"omitempty,min=1"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=cash card transfer"`
	Notes         *string          `json:"notes"          validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type AmountsByMethod struct {
	Cash     decimal.Decimal `json:"cash"`
	Card     decimal.Decimal `json:"card"`
	Transfer decimal.Decimal `json:"transfer"`
	Total    decimal.Decimal `json:"total"`
}

type SessionResponse struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	InitialAmount  decimal.Decimal  `json:"initial_amount"`
	OpenedBy       string           `json:"opened_by"`
	OpenedAt       string           `json:"opened_at"`
	ClosedBy       *string          `json:"closed_by"`
	ClosedAt       *string          `json:"closed_at"`
	Expected       *AmountsByMethod `json:"expected"`
	Actual         *AmountsByMethod `json:"actual"`
	CashBreakdown  map[string]int   `json:"cash_breakdown"`
	Difference     *decimal.Decimal `json:"difference"`
	CashDifference *decimal.Decimal `json:"cash_difference"`

	SuggestedWithdrawal *decimal.Decimal `json:"suggested_withdrawal"`
	ActualWithdrawal    *decimal.Decimal `json:"actual_withdrawal"`
	RemainingInRegister *decimal.Decimal `json:"remaining_in_register"`
	Notes               *string          `json:"notes"`
}

// ActiveSessionResponse is the live view of the open session.
type ActiveSessionResponse struct {
	ID            string          `json:"id"`
	OpenedBy      string          `json:"opened_by"`
	OpenedAt      string          `json:"opened_at"`
	InitialAmount decimal.Decimal `json:"initial_amount"`
	CashIn        decimal.Decimal `json:"cash_in"`
	Withdrawals   decimal.Decimal `json:"withdrawals"`
	ExpectedCash  decimal.Decimal `json:"expected_cash"`
	Expected      AmountsByMethod `json:"expected"`
	PendingCount  int             `json:"pending_count"`
}

type LastClosingResponse struct {
	SessionID           *string          `json:"session_id"`
	ClosedAt            *string          `json:"closed_at"`
	RemainingInRegister *decimal.Decimal `json:"remaining_in_register"`
	SuggestedInitial    decimal.Decimal  `json:"suggested_initial"`
}

type PreCloseInfoResponse struct {
	SessionID           string          `json:"session_id"`
	InitialAmount       decimal.Decimal `json:"initial_amount"`
	Expected            AmountsByMethod `json:"expected"`
	TargetFloat         decimal.Decimal `json:"target_float"`
	SuggestedWithdrawal decimal.Decimal `json:"suggested_withdrawal"`
	PendingCount        int             `json:"pending_count"`
	PendingTotal        decimal.Decimal `json:"pending_total"`
}

// ClosedSessionResponse is one row of the closing history.
type ClosedSessionResponse struct {
	ID                  string           `json:"id"`
	OpenedBy            string           `json:"opened_by"`
	ClosedBy            string           `json:"closed_by"`
	OpenedAt            string           `json:"opened_at"`
	ClosedAt            string           `json:"closed_at"`
	InitialAmount       decimal.Decimal  `json:"initial_amount"`
	CashIn              decimal.Decimal  `json:"cash_in"`
	Withdrawals         decimal.Decimal  `json:"withdrawals"`
	ExpectedCash        decimal.Decimal  `json:"expected_cash"`
	Expected            AmountsByMethod  `json:"expected"`
	Actual              AmountsByMethod  `json:"actual"`
	CashDifference      decimal.Decimal  `json:"cash_difference"`
	Difference          decimal.Decimal  `json:"difference"`
	ActualWithdrawal    *decimal.Decimal `json:"actual_withdrawal"`
	RemainingInRegister *decimal.Decimal `json:"remaining_in_register"`
	CashBreakdown       map[string]int   `json:"cash_breakdown"`
	Notes               *string          `json:"notes"`
}

type TransactionResponse struct {
	ID              string          `json:"id"`
	CashSessionID   string          `json:"cash_session_id"`
	Timestamp       string          `json:"timestamp"`
	TransactionType string          `json:"transaction_type"`
	StayID          *string         `json:"stay_id"`
	LicensePlate    *string         `json:"license_plate"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	ChangeGiven     decimal.Decimal `json:"change_given"`
	PaymentMethod   string          `json:"payment_method"`
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	ProductID       *string         `json:"product_id"`
	ProductName     *string         `json:"product_name"`
	Notes           *string         `json:"notes"`
}

type PendingItem struct {
	StayID          string          `json:"stay_id"`
	LicensePlate    string          `json:"license_plate"`
	TransactionType string          `json:"transaction_type"` // prepayment | checkout
	Amount          decimal.Decimal `json:"amount"`
	Timestamp       *string         `json:"timestamp"`
	UserName        *string         `json:"user_name"`
}

type PendingListResponse struct {
	Items []PendingItem   `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ─── Events ──────────────────────────────────────────────────────────────────

// SessionClosedEvent is handed to the notification side after a close commits.
// It is also the payload of the closing-summary job and the AMQP message.
type SessionClosedEvent struct {
	SessionID           string          `json:"session_id"`
	OpenedBy            string          `json:"opened_by"`
	ClosedBy            string          `json:"closed_by"`
	OpenedAt            string          `json:"opened_at"`
	ClosedAt            string          `json:"closed_at"`
	InitialAmount       decimal.Decimal `json:"initial_amount"`
	Expected            AmountsByMethod `json:"expected"`
	Actual              AmountsByMethod `json:"actual"`
	Difference          decimal.Decimal `json:"difference"`
	CashDifference      decimal.Decimal `json:"cash_difference"`
	CashBreakdown       map[string]int  `json:"cash_breakdown"`
	CashBreakdownTotal  decimal.Decimal `json:"cash_breakdown_total"`
	SuggestedWithdrawal decimal.Decimal `json:"suggested_withdrawal"`
	ActualWithdrawal    decimal.Decimal `json:"actual_withdrawal"`
	RemainingInRegister decimal.Decimal `json:"remaining_in_register"`
	Notes               *string         `json:"notes"`
}
