package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"parkingcash/internal/model"
	"parkingcash/internal/repository"
	"parkingcash/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// ── In-memory store ──────────────────────────────────────────────────────────
// One mutex stands in for the row locks: every conditional write checks and
// mutates under it, like the WHERE-guarded UPDATEs in the gorm repositories.

type memDB struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.CashSession
	txs      map[uuid.UUID]*model.CashTransaction
	stays    map[uuid.UUID]*model.Stay
	users    map[uuid.UUID]*model.User
	products map[uuid.UUID]*model.Product
}

func newMemDB() *memDB {
	return &memDB{
		sessions: make(map[uuid.UUID]*model.CashSession),
		txs:      make(map[uuid.UUID]*model.CashTransaction),
		stays:    make(map[uuid.UUID]*model.Stay),
		users:    make(map[uuid.UUID]*model.User),
		products: make(map[uuid.UUID]*model.Product),
	}
}

func (m *memDB) ledger(sessionID uuid.UUID) []model.CashTransaction {
	var out []model.CashTransaction
	for _, t := range m.txs {
		if t.CashSessionID != sessionID {
			continue
		}
		c := *t
		if c.StayID != nil {
			if st, ok := m.stays[*c.StayID]; ok {
				sc := *st
				c.Stay = &sc
			}
		}
		if u, ok := m.users[c.UserID]; ok {
			uc := *u
			c.User = &uc
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// ── CashRepository ───────────────────────────────────────────────────────────

type fakeCashRepo struct{ db *memDB }

var _ repository.CashRepository = (*fakeCashRepo)(nil)

func (r *fakeCashRepo) CreateSessionTx(_ context.Context, _ *gorm.DB, s *model.CashSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.sessions {
		if existing.IsOpen() {
			return repository.ErrOpenSessionExists
		}
	}
	c := *s
	r.db.sessions[s.ID] = &c
	return nil
}

func (r *fakeCashRepo) FindOpenSession(_ context.Context) (*model.CashSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.IsOpen() {
			c := *s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeCashRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeCashRepo) closedSorted() []model.CashSession {
	var out []model.CashSession
	for _, s := range r.db.sessions {
		if !s.IsOpen() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(*out[j].ClosedAt) })
	return out
}

func (r *fakeCashRepo) FindLastClosedSession(_ context.Context) (*model.CashSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	closed := r.closedSorted()
	if len(closed) == 0 {
		return nil, repository.ErrNotFound
	}
	return &closed[0], nil
}

func (r *fakeCashRepo) ListClosedSessions(_ context.Context, limit int) ([]model.CashSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	closed := r.closedSorted()
	if len(closed) > limit {
		closed = closed[:limit]
	}
	for i := range closed {
		closed[i].Transactions = r.db.ledger(closed[i].ID)
	}
	return closed, nil
}

func (r *fakeCashRepo) LockOpenSessionTx(ctx context.Context, _ *gorm.DB) (*model.CashSession, error) {
	return r.FindOpenSession(ctx)
}

func (r *fakeCashRepo) LockSessionTx(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	return r.FindSessionByID(ctx, id)
}

func (r *fakeCashRepo) CloseSessionTx(_ context.Context, _ *gorm.DB, s *model.CashSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.sessions[s.ID]
	if !ok || !stored.IsOpen() {
		return repository.ErrStaleState
	}
	c := *s
	r.db.sessions[s.ID] = &c
	return nil
}

func (r *fakeCashRepo) CreateTransactionTx(_ context.Context, _ *gorm.DB, t *model.CashTransaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *t
	r.db.txs[t.ID] = &c
	return nil
}

func (r *fakeCashRepo) FindTransactionByID(_ context.Context, id uuid.UUID) (*model.CashTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.txs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeCashRepo) LockTransactionTx(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.CashTransaction, error) {
	return r.FindTransactionByID(ctx, id)
}

func (r *fakeCashRepo) DeleteTransactionTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.txs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.txs, id)
	return nil
}

func (r *fakeCashRepo) ListTransactions(_ context.Context, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.ledger(sessionID), nil
}

func (r *fakeCashRepo) ListTransactionsTx(ctx context.Context, _ *gorm.DB, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	return r.ListTransactions(ctx, sessionID)
}

func (r *fakeCashRepo) DB() *gorm.DB { return nil }

// ── StayRepository ───────────────────────────────────────────────────────────

type fakeStayRepo struct{ db *memDB }

var _ repository.StayRepository = (*fakeStayRepo)(nil)

func (r *fakeStayRepo) list(match func(*model.Stay) bool) []model.Stay {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Stay
	for _, s := range r.db.stays {
		if match(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicensePlate() < out[j].LicensePlate() })
	return out
}

func (r *fakeStayRepo) ListPendingPrepayments(_ context.Context) ([]model.Stay, error) {
	return r.list(func(s *model.Stay) bool {
		return s.Status == model.StayActive && s.PrepaidAmount != nil && !s.PrepaymentCashRegistered
	}), nil
}

func (r *fakeStayRepo) ListPendingCheckouts(_ context.Context) ([]model.Stay, error) {
	return r.list(func(s *model.Stay) bool {
		return s.Status == model.StayCompleted && s.FinalPrice != nil && !s.CashRegistered
	}), nil
}

func (r *fakeStayRepo) LockStayTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Stay, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stays[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeStayRepo) MarkPrepaymentRegisteredTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stays[id]
	if !ok || s.PrepaymentCashRegistered {
		return repository.ErrAlreadySettled
	}
	s.PrepaymentCashRegistered = true
	return nil
}

func (r *fakeStayRepo) MarkCheckoutRegisteredTx(_ context.Context, _ *gorm.DB, id uuid.UUID, method model.PaymentMethod, paid, change decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stays[id]
	if !ok || s.CashRegistered {
		return repository.ErrAlreadySettled
	}
	s.CashRegistered = true
	s.PaymentMethod = &method
	s.AmountPaid = &paid
	s.ChangeGiven = &change
	return nil
}

func (r *fakeStayRepo) ClearPrepaymentRegisteredTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stays[id]
	if !ok || !s.PrepaymentCashRegistered {
		return repository.ErrStaleState
	}
	s.PrepaymentCashRegistered = false
	return nil
}

func (r *fakeStayRepo) ClearCheckoutRegisteredTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stays[id]
	if !ok || !s.CashRegistered {
		return repository.ErrStaleState
	}
	s.CashRegistered = false
	s.PaymentMethod, s.AmountPaid, s.ChangeGiven = nil, nil, nil
	return nil
}

// ── UserRepository / ProductRepository ───────────────────────────────────────

type fakeUserRepo struct{ db *memDB }

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) Upsert(ctx context.Context, u *model.User) error {
	u.IsActive = true
	return r.Create(ctx, u)
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username && u.IsActive {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeProductRepo struct{ db *memDB }

var _ repository.ProductRepository = (*fakeProductRepo)(nil)

func (r *fakeProductRepo) FindActiveByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakeProductRepo) ListActive(_ context.Context) ([]model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Product
	for _, p := range r.db.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	db       *memDB
	cash     service.CashService
	pending  service.PendingService
	operator uuid.UUID
}

// clock hands out strictly increasing timestamps so ledger order is stable.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newFixture(t *testing.T, notifier service.SessionClosedNotifier) *fixture {
	t.Helper()
	db := newMemDB()
	operator := uuid.New()
	db.users[operator] = &model.User{ID: operator, Username: "carmen", Role: model.RoleWorker, IsActive: true}

	clk := &clock{now: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
	opts := service.Options{ChangeFloat: dec("300"), Now: clk.Now}
	cashRepo := &fakeCashRepo{db: db}
	stayRepo := &fakeStayRepo{db: db}
	userRepo := &fakeUserRepo{db: db}

	pending := service.NewPendingService(cashRepo, stayRepo, userRepo, opts)
	cash := service.NewCashService(cashRepo, stayRepo, &fakeProductRepo{db: db}, userRepo, pending, notifier, opts)
	return &fixture{db: db, cash: cash, pending: pending, operator: operator}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// addStay inserts a stay with its vehicle. prepaid and final may be empty.
func (f *fixture) addStay(plate, status, prepaid, final string, prepaymentRegistered bool) uuid.UUID {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id := uuid.New()
	now := time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)
	st := &model.Stay{
		ID:                       id,
		VehicleID:                uuid.New(),
		Status:                   status,
		CheckInTime:              &now,
		PrepaymentCashRegistered: prepaymentRegistered,
	}
	st.Vehicle = &model.Vehicle{ID: st.VehicleID, LicensePlate: plate}
	if prepaid != "" {
		st.PrepaidAmount = decPtr(prepaid)
	}
	if final != "" {
		st.FinalPrice = decPtr(final)
		out := now.Add(2 * time.Hour)
		st.CheckOutTime = &out
	}
	f.db.stays[id] = st
	return id
}

func (f *fixture) stay(id uuid.UUID) model.Stay {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return *f.db.stays[id]
}

func (f *fixture) addProduct(name, price string, active bool) uuid.UUID {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id := uuid.New()
	f.db.products[id] = &model.Product{ID: id, Name: name, Price: dec(price), IsActive: active}
	return id
}

func (f *fixture) ledgerLen(sessionID uuid.UUID) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.ledger(sessionID))
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}
