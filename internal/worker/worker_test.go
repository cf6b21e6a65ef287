package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"parkingcash/internal/dto"
	"parkingcash/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	key   string
	value []byte
}

// fakeLists models Redis lists: LPUSH prepends, RPOP takes from the tail.
type fakeLists struct {
	mu     sync.Mutex
	pushes []pushed
	lists  map[string][]string
	err    error
}

func (f *fakeLists) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.lists == nil {
		f.lists = map[string][]string{}
	}
	for _, v := range values {
		var b []byte
		switch x := v.(type) {
		case []byte:
			b = x
		case string:
			b = []byte(x)
		}
		f.pushes = append(f.pushes, pushed{key: key, value: b})
		f.lists[key] = append([]string{string(b)}, f.lists[key]...)
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeLists) RPop(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	l := f.lists[key]
	if len(l) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(l[len(l)-1])
	f.lists[key] = l[:len(l)-1]
	return cmd
}

func (f *fakeLists) LLen(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) error

func (h handlerFunc) Process(ctx context.Context, payload json.RawMessage) error {
	return h(ctx, payload)
}

func sampleEvent() dto.SessionClosedEvent {
	notes := "Billete de 20 roto"
	return dto.SessionClosedEvent{
		SessionID:     "9b2f7f0e-1c1d-4a4e-9f57-6d3b2b1a0c11",
		OpenedBy:      "carmen",
		ClosedBy:      "luis",
		OpenedAt:      "2026-03-14T08:00:00+01:00",
		ClosedAt:      "2026-03-14T22:05:00+01:00",
		InitialAmount: decimal.RequireFromString("200"),
		Expected: dto.AmountsByMethod{
			Cash: decimal.RequireFromString("85"), Card: decimal.RequireFromString("40"),
			Transfer: decimal.Zero, Total: decimal.RequireFromString("125"),
		},
		Actual: dto.AmountsByMethod{
			Cash: decimal.RequireFromString("80"), Card: decimal.RequireFromString("40"),
			Transfer: decimal.Zero, Total: decimal.RequireFromString("120"),
		},
		Difference:          decimal.RequireFromString("-5"),
		CashDifference:      decimal.RequireFromString("-5"),
		CashBreakdown:       map[string]int{"50": 1, "20": 1, "10": 1},
		CashBreakdownTotal:  decimal.RequireFromString("80"),
		RemainingInRegister: decimal.RequireFromString("80"),
		Notes:               &notes,
	}
}

func decodeJob(t *testing.T, raw []byte) Job {
	t.Helper()
	var j Job
	require.NoError(t, json.Unmarshal(raw, &j))
	return j
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

func TestDispatcher_QueuesSummaryAndEvent(t *testing.T) {
	lists := &fakeLists{}
	d := NewDispatcher(lists, true)

	require.NoError(t, d.NotifySessionClosed(context.Background(), sampleEvent()))

	require.Len(t, lists.pushes, 2)
	var types []string
	for _, p := range lists.pushes {
		assert.Equal(t, QueueCierre, p.key)
		job := decodeJob(t, p.value)
		assert.Equal(t, 0, job.Attempts)
		var ev dto.SessionClosedEvent
		require.NoError(t, json.Unmarshal(job.Payload, &ev))
		assert.Equal(t, sampleEvent().SessionID, ev.SessionID)
		types = append(types, job.Type)
	}
	assert.ElementsMatch(t, []string{JobCierreCaja, JobEventoCierre}, types)
}

func TestDispatcher_JoinsErrors(t *testing.T) {
	redisDown := errors.New("redis down")
	d := NewDispatcher(&fakeLists{err: redisDown}, true)

	err := d.NotifySessionClosed(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, redisDown)
	assert.Contains(t, err.Error(), JobCierreCaja)
	assert.Contains(t, err.Error(), JobEventoCierre)
}

func TestDispatcher_WithoutBroker(t *testing.T) {
	lists := &fakeLists{}
	require.NoError(t, NewDispatcher(lists, false).NotifySessionClosed(context.Background(), sampleEvent()))
	require.Len(t, lists.pushes, 1)
	assert.Equal(t, JobCierreCaja, decodeJob(t, lists.pushes[0].value).Type)
}

// ── Closing event ────────────────────────────────────────────────────────────

type fakePublisher struct {
	mu    sync.Mutex
	got   []dto.SessionClosedEvent
	err   error
	block bool
}

func (p *fakePublisher) PublishSessionClosed(ctx context.Context, ev dto.SessionClosedEvent) error {
	p.mu.Lock()
	p.got = append(p.got, ev)
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func TestClosingEventWorker_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	payload, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	require.NoError(t, NewClosingEventWorker(pub).Process(context.Background(), payload))
	require.Len(t, pub.got, 1)
	assert.Equal(t, sampleEvent().SessionID, pub.got[0].SessionID)

	require.NoError(t, NewClosingEventWorker(pub).Process(context.Background(), json.RawMessage(`[]`)))
	assert.Len(t, pub.got, 1, "bad payloads are dropped, not retried")
}

func TestClosingEventWorker_UnreachableBrokerIsBounded(t *testing.T) {
	w := NewClosingEventWorker(&fakePublisher{block: true})
	w.timeout = 50 * time.Millisecond
	payload, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	start := time.Now()
	err = w.Process(context.Background(), payload)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClosingEventWorker_FailureIsRetriedByPool(t *testing.T) {
	lists := &fakeLists{}
	pub := &fakePublisher{err: errors.New("connection refused")}
	handlers := map[string]JobHandler{JobEventoCierre: NewClosingEventWorker(pub)}

	require.NoError(t, NewDispatcher(lists, true).NotifySessionClosed(context.Background(), sampleEvent()))
	raw := lists.lists[QueueCierre][0] // head is the last push: the event job
	require.Equal(t, JobEventoCierre, decodeJob(t, []byte(raw)).Type)

	processJob(context.Background(), lists, handlers, QueueCierre, raw)
	requeued := decodeJob(t, []byte(lists.lists[QueueCierre][0]))
	assert.Equal(t, JobEventoCierre, requeued.Type)
	assert.Equal(t, 1, requeued.Attempts)
}

// ── Pool ─────────────────────────────────────────────────────────────────────

// brokenQueue fails every BRPOP immediately, like a client whose Redis is gone.
type brokenQueue struct {
	fakeLists
	calls int
}

func (q *brokenQueue) BRPop(ctx context.Context, _ time.Duration, _ ...string) *redis.StringSliceCmd {
	q.calls++
	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetErr(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))
	return cmd
}

func TestPool_BacksOffWhenRedisIsDown(t *testing.T) {
	q := &brokenQueue{}
	p := &Pool{rdb: q, handlers: map[string]JobHandler{}, backoff: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 175*time.Millisecond)
	defer cancel()
	p.run(ctx, 0)

	assert.GreaterOrEqual(t, q.calls, 1)
	assert.LessOrEqual(t, q.calls, 5)
}

// ── Retry / DLQ ──────────────────────────────────────────────────────────────

func rawJob(t *testing.T, attempts int) string {
	t.Helper()
	b, err := json.Marshal(Job{Type: JobCierreCaja, Payload: json.RawMessage(`{"session_id":"x"}`), Attempts: attempts})
	require.NoError(t, err)
	return string(b)
}

func TestProcessJob_SuccessPushesNothing(t *testing.T) {
	lists := &fakeLists{}
	calls := 0
	handlers := map[string]JobHandler{JobCierreCaja: handlerFunc(func(context.Context, json.RawMessage) error {
		calls++
		return nil
	})}

	processJob(context.Background(), lists, handlers, QueueCierre, rawJob(t, 0))
	assert.Equal(t, 1, calls)
	assert.Empty(t, lists.pushes)
}

func TestProcessJob_RetriesThenDeadLetters(t *testing.T) {
	lists := &fakeLists{}
	handlers := map[string]JobHandler{JobCierreCaja: handlerFunc(func(context.Context, json.RawMessage) error {
		return errors.New("smtp 451")
	})}
	ctx := context.Background()

	raw := rawJob(t, 0)
	for attempt := 1; attempt < MaxJobAttempts; attempt++ {
		processJob(ctx, lists, handlers, QueueCierre, raw)
		require.Len(t, lists.pushes, attempt)
		last := lists.pushes[attempt-1]
		require.Equal(t, QueueCierre, last.key)
		assert.Equal(t, attempt, decodeJob(t, last.value).Attempts)
		raw = string(last.value)
	}

	processJob(ctx, lists, handlers, QueueCierre, raw)
	require.Len(t, lists.pushes, MaxJobAttempts)
	last := lists.pushes[MaxJobAttempts-1]
	assert.Equal(t, DLQPrefix+QueueCierre, last.key)

	var entry DLQEntry
	require.NoError(t, json.Unmarshal(last.value, &entry))
	assert.Equal(t, JobCierreCaja, entry.JobType)
	assert.Equal(t, "smtp 451", entry.Reason)
	assert.Equal(t, MaxJobAttempts, entry.Attempts)
	assert.JSONEq(t, `{"session_id":"x"}`, string(entry.Payload))
}

func TestProcessJob_UnknownTypeAndGarbage(t *testing.T) {
	lists := &fakeLists{}
	processJob(context.Background(), lists, map[string]JobHandler{}, QueueCierre, rawJob(t, 0))
	processJob(context.Background(), lists, map[string]JobHandler{}, QueueCierre, "{oops")

	require.Len(t, lists.pushes, 2)
	for _, p := range lists.pushes {
		assert.Equal(t, DLQPrefix+QueueCierre, p.key)
	}
}

// ── Closing email ────────────────────────────────────────────────────────────

type fakeSender struct {
	calls   int
	to      []string
	subject string
	body    string
	attach  string
	err     error
}

func (s *fakeSender) Send(to []string, subject, body, attachPath string) error {
	s.calls++
	s.to, s.subject, s.body, s.attach = to, subject, body, attachPath
	return s.err
}

func TestClosingBody(t *testing.T) {
	body := ClosingBody(sampleEvent())
	assert.Contains(t, body, "Sesión:   9b2f7f0e-1c1d-4a4e-9f57-6d3b2b1a0c11")
	assert.Contains(t, body, "Fondo inicial: 200.00 €")
	assert.Contains(t, body, "Efectivo")
	assert.Contains(t, body, "-5.00")
	assert.Contains(t, body, "Queda en caja:     80.00 €")
	assert.Contains(t, body, "Notas: Billete de 20 roto")

	assert.Equal(t, "Cierre de caja 2026-03-14 · diferencia -5.00 €", ClosingSubject(sampleEvent()))
	ev := sampleEvent()
	ev.Difference = decimal.RequireFromString("2.5")
	assert.True(t, strings.HasSuffix(ClosingSubject(ev), "+2.50 €"))
}

func TestClosingEmailWorker_SendsWithReport(t *testing.T) {
	sender := &fakeSender{}
	dir := t.TempDir()
	w := NewClosingEmailWorker(sender, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "smtp"}),
		[]string{"gerencia@parking.test"}, dir)

	payload, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, w.Process(context.Background(), payload))

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"gerencia@parking.test"}, sender.to)
	require.NotEmpty(t, sender.attach)
	_, err = os.Stat(sender.attach)
	assert.NoError(t, err)
}

func TestClosingEmailWorker_SkipsAndFailures(t *testing.T) {
	payload, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	sender := &fakeSender{}
	require.NoError(t, NewClosingEmailWorker(sender, nil, nil, "").Process(context.Background(), payload))
	assert.Equal(t, 0, sender.calls, "no recipients configured")

	require.NoError(t, NewClosingEmailWorker(sender, nil, []string{"a@b.test"}, "").Process(context.Background(), json.RawMessage(`[]`)))
	assert.Equal(t, 0, sender.calls, "bad payloads are dropped, not retried")

	sender.err = errors.New("smtp 451")
	err = NewClosingEmailWorker(sender, nil, []string{"a@b.test"}, "").Process(context.Background(), payload)
	assert.Error(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Empty(t, sender.attach)
}

// ── DLQ re-drive ─────────────────────────────────────────────────────────────

func deadLetter(t *testing.T, lists *fakeLists, redrives int) {
	t.Helper()
	SendToDLQ(context.Background(), lists, QueueCierre,
		Job{Type: JobCierreCaja, Payload: json.RawMessage(`{"session_id":"x"}`), Attempts: MaxJobAttempts, Redrives: redrives},
		"smtp 451")
}

func TestRedrive_RequeuesWithFreshAttempts(t *testing.T) {
	lists := &fakeLists{}
	deadLetter(t, lists, 0)
	deadLetter(t, lists, MaxRedrives)

	moved := redrive(context.Background(), RedriveConfig{RDB: lists, Queue: QueueCierre})
	assert.Equal(t, 1, moved)

	require.Len(t, lists.lists[QueueCierre], 1)
	job := decodeJob(t, []byte(lists.lists[QueueCierre][0]))
	assert.Equal(t, JobCierreCaja, job.Type)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, 1, job.Redrives)

	require.Len(t, lists.lists[DLQPrefix+QueueCierre], 1, "exhausted entry stays parked")
	var parked DLQEntry
	require.NoError(t, json.Unmarshal([]byte(lists.lists[DLQPrefix+QueueCierre][0]), &parked))
	assert.Equal(t, MaxRedrives, parked.Redrives)
}

func TestRedrive_SkipsWhileBreakerOpen(t *testing.T) {
	lists := &fakeLists{}
	deadLetter(t, lists, 0)
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "smtp", FailureThreshold: 1})
	_ = cb.Execute(func() error { return errors.New("smtp down") })

	assert.Equal(t, 0, redrive(context.Background(), RedriveConfig{RDB: lists, CB: cb, Queue: QueueCierre}))
	assert.Len(t, lists.lists[DLQPrefix+QueueCierre], 1)
}

func TestProcessJob_RedrivenJobKeepsCount(t *testing.T) {
	lists := &fakeLists{}
	handlers := map[string]JobHandler{JobCierreCaja: handlerFunc(func(context.Context, json.RawMessage) error {
		return errors.New("smtp 451")
	})}
	b, err := json.Marshal(Job{Type: JobCierreCaja, Payload: json.RawMessage(`{}`), Attempts: MaxJobAttempts - 1, Redrives: 2})
	require.NoError(t, err)

	processJob(context.Background(), lists, handlers, QueueCierre, string(b))
	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(lists.lists[DLQPrefix+QueueCierre][0]), &entry))
	assert.Equal(t, 2, entry.Redrives)
}
