package service

import (
	"sort"

	"parkingcash/internal/dto"
	"parkingcash/internal/model"

	"github.com/shopspring/decimal"
)

// ComputeExpected derives what the register should hold per payment method
// from the opening float and the session's ledger. Order of txs is irrelevant.
//
// The float is counted from initial, so the session's own INITIAL marker
// (same amount) is skipped once; any other INITIAL or ADJUSTMENT entry is
// folded into cash.
func ComputeExpected(initial decimal.Decimal, txs []model.CashTransaction) dto.AmountsByMethod {
	cash, card, transfer := initial, decimal.Zero, decimal.Zero
	markerSkipped := false

	for _, t := range txs {
		switch t.TransactionType {
		case model.TxInitial:
			if !markerSkipped && t.AmountDue.Equal(initial) {
				markerSkipped = true
				continue
			}
			cash = cash.Add(t.AmountDue)
		case model.TxAdjustment:
			cash = cash.Add(t.AmountDue)
		case model.TxWithdrawal:
			cash = cash.Sub(t.AmountDue)
		case model.TxCheckout, model.TxPrepayment, model.TxProductSale:
			switch t.PaymentMethod {
			case model.PaymentCard:
				card = card.Add(t.AmountDue)
			case model.PaymentTransfer:
				transfer = transfer.Add(t.AmountDue)
			default:
				cash = cash.Add(t.AmountDue)
			}
		}
	}
	return amounts(cash, card, transfer)
}

func amounts(cash, card, transfer decimal.Decimal) dto.AmountsByMethod {
	return dto.AmountsByMethod{
		Cash:     cash,
		Card:     card,
		Transfer: transfer,
		Total:    cash.Add(card).Add(transfer),
	}
}

// cashFlow returns cash-method revenue and the sum of withdrawals.
func cashFlow(txs []model.CashTransaction) (cashIn, withdrawals decimal.Decimal) {
	for _, t := range txs {
		switch t.TransactionType {
		case model.TxCheckout, model.TxPrepayment, model.TxProductSale:
			if t.PaymentMethod == model.PaymentCash {
				cashIn = cashIn.Add(t.AmountDue)
			}
		case model.TxWithdrawal:
			withdrawals = withdrawals.Add(t.AmountDue)
		}
	}
	return cashIn, withdrawals
}

// suggestedWithdrawal is how much cash to take out so that target stays in the drawer.
func suggestedWithdrawal(expectedCash, target decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, expectedCash.Sub(target))
}

// ── Denominations ────────────────────────────────────────────────────────────

// Euro notes and coins accepted in a cash breakdown.
var eurDenominations = []string{
	"500", "200", "100", "50", "20", "10", "5",
	"2", "1", "0.50", "0.20", "0.10", "0.05", "0.02", "0.01",
}

var denominationValues = func() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(eurDenominations))
	for _, d := range eurDenominations {
		m[d] = decimal.RequireFromString(d)
	}
	return m
}()

func denominationValue(key string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(key)
	if err != nil {
		return decimal.Zero, false
	}
	for _, d := range denominationValues {
		if d.Equal(v) {
			return d, true
		}
	}
	return decimal.Zero, false
}

// breakdownTotal validates a denomination count and returns its value.
func breakdownTotal(b map[string]int) (decimal.Decimal, error) {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := decimal.Zero
	for _, k := range keys {
		face, ok := denominationValue(k)
		if !ok {
			return decimal.Zero, validation("Denominación desconocida: %q", k)
		}
		if b[k] < 0 {
			return decimal.Zero, validation("Cantidad negativa para la denominación %s", k)
		}
		total = total.Add(face.Mul(decimal.NewFromInt(int64(b[k]))))
	}
	return total, nil
}
