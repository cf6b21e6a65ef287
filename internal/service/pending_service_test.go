package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"parkingcash/internal/dto"
	"parkingcash/internal/model"
	"parkingcash/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingList_PrepaymentsAndCheckouts(t *testing.T) {
	f := newFixture(t, nil)
	f.addStay("1111AAA", model.StayActive, "30", "", false)     // pending advance
	f.addStay("2222BBB", model.StayCompleted, "", "45", false)  // pending checkout
	f.addStay("3333CCC", model.StayCompleted, "20", "60", true) // advance already in the ledger
	f.addStay("4444DDD", model.StayCompleted, "20", "60", false)
	f.addStay("5555EEE", model.StayActive, "", "", false)      // nothing owed yet
	f.addStay("6666FFF", model.StayDiscarded, "", "10", false) // discarded stays never show

	resp, err := f.pending.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, resp.Count)

	byPlate := map[string]dto.PendingItem{}
	for _, it := range resp.Items {
		byPlate[it.LicensePlate] = it
	}
	assert.Equal(t, string(model.TxPrepayment), byPlate["1111AAA"].TransactionType)
	assertDec(t, "30", byPlate["1111AAA"].Amount)
	assert.Equal(t, string(model.TxCheckout), byPlate["2222BBB"].TransactionType)
	assertDec(t, "45", byPlate["2222BBB"].Amount)
	assertDec(t, "40", byPlate["3333CCC"].Amount, "registered advance is discounted")
	assertDec(t, "60", byPlate["4444DDD"].Amount, "unregistered advance is not")
	assertDec(t, "175", resp.Total)
}

func TestPendingList_CheckoutDueNeverNegative(t *testing.T) {
	f := newFixture(t, nil)
	f.addStay("8888XYZ", model.StayCompleted, "50", "30", true)

	resp, err := f.pending.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assertDec(t, "0", resp.Items[0].Amount)
}

func TestRegister_CashReturnsChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sessionID := openSession(t, f, "200")
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)

	resp, err := f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("50")})
	require.NoError(t, err)
	assert.Equal(t, string(model.TxCheckout), resp.TransactionType)
	assertDec(t, "35", resp.AmountDue)
	assertDec(t, "50", resp.AmountPaid)
	assertDec(t, "15", resp.ChangeGiven)
	require.NotNil(t, resp.LicensePlate)
	assert.Equal(t, "1234ABC", *resp.LicensePlate)
	assert.Equal(t, sessionID.String(), resp.CashSessionID)

	st := f.stay(stayID)
	assert.True(t, st.CashRegistered)
	require.NotNil(t, st.ChangeGiven)
	assertDec(t, "15", *st.ChangeGiven)
	assert.Equal(t, model.PaymentCash, *st.PaymentMethod)
}

func TestRegister_CardIgnoresTenderedAmount(t *testing.T) {
	f := newFixture(t, nil)
	openSession(t, f, "200")
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)

	resp, err := f.pending.Register(context.Background(), stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "card", AmountPaid: dec("100")})
	require.NoError(t, err)
	assertDec(t, "35", resp.AmountPaid)
	assertDec(t, "0", resp.ChangeGiven)
}

func TestRegister_CashShortfallLeavesNoTrace(t *testing.T) {
	f := newFixture(t, nil)
	sessionID := openSession(t, f, "200")
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)

	_, err := f.pending.Register(context.Background(), stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("20")})
	assert.ErrorIs(t, err, service.ErrValidation)

	st := f.stay(stayID)
	assert.False(t, st.CashRegistered)
	assert.Nil(t, st.AmountPaid)
	assert.Equal(t, 1, f.ledgerLen(sessionID))
}

func TestRegister_PrepaymentThenCheckoutBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	openSession(t, f, "100")
	stayID := f.addStay("4321ZZZ", model.StayActive, "30", "", false)

	prepay, err := f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("30")})
	require.NoError(t, err)
	assert.Equal(t, string(model.TxPrepayment), prepay.TransactionType)
	st := f.stay(stayID)
	assert.Equal(t, model.PrepaymentSettled, st.Settlement())

	f.db.mu.Lock()
	f.db.stays[stayID].Status = model.StayCompleted
	f.db.stays[stayID].FinalPrice = decPtr("80")
	f.db.mu.Unlock()

	list, err := f.pending.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assertDec(t, "50", list.Items[0].Amount)

	checkout, err := f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("50")})
	require.NoError(t, err)
	assertDec(t, "50", checkout.AmountDue)

	active, err := f.cash.ActiveSession(ctx)
	require.NoError(t, err)
	assertDec(t, "180", active.ExpectedCash)
	assertDec(t, "80", active.CashIn)
	assert.Equal(t, 0, active.PendingCount)
}

func TestRegister_TwiceConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sessionID := openSession(t, f, "200")
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)

	_, err := f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("35")})
	require.NoError(t, err)
	_, err = f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("35")})
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, 2, f.ledgerLen(sessionID))
}

func TestRegister_ConcurrentCallersSettleOnce(t *testing.T) {
	f := newFixture(t, nil)
	sessionID := openSession(t, f, "200")
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pending.Register(context.Background(), stayID, f.operator,
				dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("35")})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, service.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 2, f.ledgerLen(sessionID), "INITIAL plus exactly one CHECKOUT")
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	stayID := f.addStay("1234ABC", model.StayCompleted, "", "35", false)
	req := dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("35")}

	_, err := f.pending.Register(ctx, stayID, f.operator, req)
	assert.ErrorIs(t, err, service.ErrInvalidState, "no open session")

	openSession(t, f, "200")

	_, err = f.pending.Register(ctx, uuid.New(), f.operator, req)
	assert.ErrorIs(t, err, service.ErrNotFound)

	nothingDue := f.addStay("5555EEE", model.StayActive, "", "", false)
	_, err = f.pending.Register(ctx, nothingDue, f.operator, req)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "bizum", AmountPaid: dec("35")})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.pending.Register(ctx, stayID, f.operator, dto.RegisterPendingRequest{PaymentMethod: "cash", AmountPaid: dec("0")})
	assert.ErrorIs(t, err, service.ErrValidation)
}
