package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stay status: "pending" | "active" | "completed" | "discarded".
// Stays are created and advanced by the stay management side; the cash
// register only reads them and writes the settlement columns.
const (
	StayPending   = "pending"
	StayActive    = "active"
	StayCompleted = "completed"
	StayDiscarded = "discarded"
)

// Settlement is the derived, read-only view over the two settlement flags.
type Settlement string

const (
	Unsettled         Settlement = "UNSETTLED"
	PrepaymentSettled Settlement = "PREPAYMENT_SETTLED"
	FullySettled      Settlement = "FULLY_SETTLED"
)

type Vehicle struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LicensePlate string    `gorm:"uniqueIndex;not null"`
	VehicleType  string    `gorm:"type:varchar(30)"`
	CreatedAt    time.Time
}

type Stay struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VehicleID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID        *uuid.UUID `gorm:"type:uuid"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	CheckInTime   *time.Time
	CheckOutTime  *time.Time
	FinalPrice    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	PrepaidAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// Written by the checkout registration, cleared by its undo.
	PaymentMethod *PaymentMethod   `gorm:"type:varchar(20)"`
	AmountPaid    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ChangeGiven   *decimal.Decimal `gorm:"type:decimal(12,2)"`

	CashRegistered           bool `gorm:"not null;default:false"`
	PrepaymentCashRegistered bool `gorm:"not null;default:false"`

	Vehicle *Vehicle `gorm:"foreignKey:VehicleID"`
	User    *User    `gorm:"foreignKey:UserID"`
}

func (s *Stay) Settlement() Settlement {
	switch {
	case s.CashRegistered:
		return FullySettled
	case s.PrepaymentCashRegistered:
		return PrepaymentSettled
	}
	return Unsettled
}

func (s *Stay) LicensePlate() string {
	if s.Vehicle == nil {
		return ""
	}
	return s.Vehicle.LicensePlate
}
