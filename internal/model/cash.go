package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session status: "open" | "closed". Closed is terminal.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxInitial     TransactionType = "initial"
	TxCheckout    TransactionType = "checkout"
	TxPrepayment  TransactionType = "prepayment"
	TxProductSale TransactionType = "product_sale"
	TxWithdrawal  TransactionType = "withdrawal"
	// TxAdjustment is reserved. No operation creates it; the reconciliation
	// engine folds it into cash.
	TxAdjustment TransactionType = "adjustment"
)

// PaymentMethod: "cash" | "card" | "transfer"
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// CashSession is one shift of the register, from opening float to counted close.
// Only one row may have Status = "open" (partial unique index
// uq_cash_sessions_single_open, created in infra.applySchemaPatches).
type CashSession struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status         string          `gorm:"type:varchar(20);not null;default:'open'"`
	InitialAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OpenedByUserID uuid.UUID       `gorm:"type:uuid;not null"`
	OpenedAt       time.Time       `gorm:"not null"`

	// Everything below is written once, by Close.
	ClosedByUserID      *uuid.UUID       `gorm:"type:uuid"`
	ClosedAt            *time.Time       `gorm:"index"`
	ExpectedCash        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedCard        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedTransfer    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedFinalAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ActualCash          *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ActualCard          *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ActualTransfer      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ActualFinalAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// CashBreakdown maps a EUR face value ("50", "0.20") to the counted units.
	CashBreakdown       map[string]int   `gorm:"type:jsonb;serializer:json"`
	SuggestedWithdrawal *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ActualWithdrawal    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	RemainingInRegister *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Difference          *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CashDifference      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Notes               *string

	OpenedBy     *User             `gorm:"foreignKey:OpenedByUserID"`
	ClosedBy     *User             `gorm:"foreignKey:ClosedByUserID"`
	Transactions []CashTransaction `gorm:"foreignKey:CashSessionID"`
}

func (s *CashSession) IsOpen() bool { return s.Status == SessionOpen }

// CashTransaction is a ledger entry. Rows are never updated; undo deletes
// them while the parent session is still open.
type CashTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CashSessionID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Timestamp       time.Time       `gorm:"not null;index"`
	TransactionType TransactionType `gorm:"type:varchar(20);not null"`
	StayID          *uuid.UUID      `gorm:"type:uuid;index"`
	AmountDue       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ChangeGiven     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID       *uuid.UUID      `gorm:"type:uuid"`
	ProductName     *string
	Notes           *string

	User *User `gorm:"foreignKey:UserID"`
	Stay *Stay `gorm:"foreignKey:StayID"`
}
