package syncqueue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/netwatch"
	"github.com/dmitrijs2005/offlinekit/internal/client/store"
	"github.com/dmitrijs2005/offlinekit/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transportFunc func(ctx context.Context, op *models.QueuedOperation) error

func (f transportFunc) Replay(ctx context.Context, op *models.QueuedOperation) error { return f(ctx, op) }

type auditCall struct {
	userID, event string
}

type fakeAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (a *fakeAuditor) LogUserActivity(_ context.Context, userID, eventType string, _ any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{userID: userID, event: eventType})
}

// clock advances one second per reading so enqueue order is strict.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestQueue(t *testing.T, tr Transport, opts Options) (*Queue, *store.Store, *fakeAuditor) {
	t.Helper()
	st, err := store.Open(context.Background(), store.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if opts.Now == nil {
		c := &clock{t: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
		opts.Now = c.Now
	}
	aud := &fakeAuditor{}
	return NewQueue(st, tr, aud, opts, nil), st, aud
}

func recordingTransport(rec *recorder, fail func(op *models.QueuedOperation) error) Transport {
	return transportFunc(func(_ context.Context, op *models.QueuedOperation) error {
		rec.add(op.Endpoint)
		if fail != nil {
			return fail(op)
		}
		return nil
	})
}

func enqueue(t *testing.T, q *Queue, endpoint string, p models.Priority, deps ...string) string {
	t.Helper()
	id, err := q.Enqueue(context.Background(), models.QueuedOperation{
		Kind:      models.OperationUpdate,
		Endpoint:  endpoint,
		Payload:   []byte(`{}`),
		Priority:  p,
		DependsOn: deps,
	})
	require.NoError(t, err)
	return id
}

func TestEnqueue_AssignsDefaults(t *testing.T) {
	q, st, _ := newTestQueue(t, recordingTransport(&recorder{}, nil), Options{DefaultMaxRetries: 7, DefaultRetryDelay: 3 * time.Second})
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, models.QueuedOperation{ID: "caller-id", Kind: models.OperationCreate, Endpoint: "/items"})
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, models.QueuedOperation{Kind: models.OperationCreate, Endpoint: "/items"})
	require.NoError(t, err)
	assert.NotEqual(t, "caller-id", id1)
	assert.NotEqual(t, id1, id2)

	op, err := st.Operations().Get(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, models.PriorityNormal, op.Priority)
	assert.Equal(t, 7, op.MaxRetries)
	assert.Equal(t, 3*time.Second, op.RetryDelay)
	assert.False(t, op.EnqueuedAt.IsZero())

	_, err = q.Enqueue(ctx, models.QueuedOperation{Kind: "patch", Endpoint: "/x"})
	require.Error(t, err)
	_, err = q.Enqueue(ctx, models.QueuedOperation{Kind: models.OperationDelete})
	require.Error(t, err)
}

func TestDrain_PriorityThenFIFO(t *testing.T) {
	rec := &recorder{}
	q, _, _ := newTestQueue(t, recordingTransport(rec, nil), Options{})

	enqueue(t, q, "/low-1", models.PriorityLow)
	enqueue(t, q, "/normal-1", models.PriorityNormal)
	enqueue(t, q, "/high-1", models.PriorityHigh)
	enqueue(t, q, "/normal-2", models.PriorityNormal)
	enqueue(t, q, "/high-2", models.PriorityHigh)

	r, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, r.Succeeded)
	assert.Equal(t, []string{"/high-1", "/high-2", "/normal-1", "/normal-2", "/low-1"}, rec.list())

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrain_FailureKeepsOperationUntilSuccess(t *testing.T) {
	rec := &recorder{}
	failing := true
	q, st, _ := newTestQueue(t, recordingTransport(rec, func(*models.QueuedOperation) error {
		if failing {
			return errors.New("503")
		}
		return nil
	}), Options{})
	ctx := context.Background()

	id := enqueue(t, q, "/profile", models.PriorityNormal)

	r, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
	require.Len(t, r.Errors, 1)
	assert.ErrorIs(t, r.Errors[0], ErrReplayFailure)

	op, err := st.Operations().Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, 1, op.RetryCount)
	assert.Contains(t, op.LastError, "503")
	assert.False(t, op.LastAttemptAt.IsZero())

	failing = false
	r, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Succeeded)
	assert.Len(t, rec.list(), 2)

	op, err = st.Operations().Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, op)
}

func TestDrain_ExhaustedOperationIsDeadLettered(t *testing.T) {
	q, st, aud := newTestQueue(t, recordingTransport(&recorder{}, func(*models.QueuedOperation) error {
		return errors.New("500")
	}), Options{})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, models.QueuedOperation{UserID: "u1", Kind: models.OperationDelete, Endpoint: "/items/1", MaxRetries: 2})
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		r, err := q.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, r.DeadLettered)
		op, err := st.Operations().Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.Equal(t, i, op.RetryCount)
		assert.LessOrEqual(t, op.RetryCount, op.MaxRetries)
	}

	r, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.DeadLettered)

	op, err := st.Operations().Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, op)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].Operation.ID)
	assert.Equal(t, 2, dead[0].Operation.RetryCount)
	assert.Contains(t, dead[0].Reason, "500")

	require.Len(t, aud.calls, 1)
	assert.Equal(t, auditCall{userID: "u1", event: models.EventOperationDeadLetter}, aud.calls[0])

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, 1, stats.DeadLettered)
	assert.Equal(t, 3, stats.RecentAttempts)
	assert.Zero(t, stats.RecentSuccesses)
	assert.Zero(t, stats.SuccessRate)

	require.NoError(t, q.Requeue(ctx, id))
	op, err = st.Operations().Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Zero(t, op.RetryCount)
	assert.Equal(t, models.EventOperationRequeued, aud.calls[1].event)

	require.ErrorIs(t, q.Requeue(ctx, id), ErrOperationNotFound)
}

func TestDrain_DependsOnDefersUntilDependencySucceeds(t *testing.T) {
	rec := &recorder{}
	failParent := true
	q, _, _ := newTestQueue(t, recordingTransport(rec, func(op *models.QueuedOperation) error {
		if op.Endpoint == "/parent" && failParent {
			return errors.New("down")
		}
		return nil
	}), Options{})
	ctx := context.Background()

	parent := enqueue(t, q, "/parent", models.PriorityNormal)
	enqueue(t, q, "/child", models.PriorityNormal, parent)

	r, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Deferred)
	assert.Equal(t, []string{"/parent"}, rec.list())

	failParent = false
	r, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, []string{"/parent", "/parent", "/child"}, rec.list())
}

func TestDrain_DeadLetteredDependencyBlocks(t *testing.T) {
	rec := &recorder{}
	q, _, _ := newTestQueue(t, recordingTransport(rec, func(op *models.QueuedOperation) error {
		if op.Endpoint == "/parent" {
			return errors.New("down")
		}
		return nil
	}), Options{DefaultMaxRetries: 1})
	ctx := context.Background()

	parent := enqueue(t, q, "/parent", models.PriorityNormal)
	enqueue(t, q, "/child", models.PriorityNormal, parent)

	for i := 0; i < 3; i++ {
		_, err := q.Drain(ctx)
		require.NoError(t, err)
	}
	assert.NotContains(t, rec.list(), "/child")

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.DeadLettered)
}

func TestDrainHighPriorityOnly(t *testing.T) {
	rec := &recorder{}
	q, _, _ := newTestQueue(t, recordingTransport(rec, nil), Options{})

	enqueue(t, q, "/normal", models.PriorityNormal)
	enqueue(t, q, "/high", models.PriorityHigh)
	enqueue(t, q, "/low", models.PriorityLow)

	r, err := q.DrainHighPriorityOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Attempted)
	assert.Equal(t, []string{"/high"}, rec.list())

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, map[models.Priority]int{models.PriorityNormal: 1, models.PriorityLow: 1}, stats.ByPriority)
	require.NotNil(t, stats.OldestEnqueuedAt)
	require.NotNil(t, stats.NextAttemptAt)
}

func TestDrain_SingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	q, _, _ := newTestQueue(t, transportFunc(func(context.Context, *models.QueuedOperation) error {
		close(entered)
		<-release
		return nil
	}), Options{})
	enqueue(t, q, "/slow", models.PriorityNormal)

	type result struct {
		r   Report
		err error
	}
	first := make(chan result, 1)
	go func() {
		r, err := q.Drain(context.Background())
		first <- result{r, err}
	}()

	<-entered
	r, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Skipped)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Draining)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.False(t, res.r.Skipped)
	assert.Equal(t, 1, res.r.Succeeded)
}

func TestDrain_StopsBetweenOperationsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	q, _, _ := newTestQueue(t, transportFunc(func(_ context.Context, op *models.QueuedOperation) error {
		rec.add(op.Endpoint)
		cancel()
		return nil
	}), Options{})
	enqueue(t, q, "/a", models.PriorityNormal)
	enqueue(t, q, "/b", models.PriorityNormal)

	r, err := q.Drain(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, []string{"/a"}, rec.list())
}

func TestRetry(t *testing.T) {
	failing := true
	q, st, _ := newTestQueue(t, recordingTransport(&recorder{}, func(*models.QueuedOperation) error {
		if failing {
			return errors.New("nope")
		}
		return nil
	}), Options{})
	ctx := context.Background()

	require.ErrorIs(t, q.Retry(ctx, "missing"), ErrOperationNotFound)

	id := enqueue(t, q, "/x", models.PriorityNormal)
	require.ErrorIs(t, q.Retry(ctx, id), ErrReplayFailure)

	op, err := st.Operations().Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Zero(t, op.RetryCount)
	assert.Empty(t, op.LastError)

	failing = false
	require.NoError(t, q.Retry(ctx, id))
	op, err = st.Operations().Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, op)
}

func TestRetry_DeliveredDuringDrainIsNotRequeued(t *testing.T) {
	tests := []struct {
		name      string
		exhausted bool
	}{
		{name: "retry budget left"},
		{name: "last attempt", exhausted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started := make(chan struct{})
			release := make(chan struct{})
			var calls atomic.Int32
			tr := transportFunc(func(context.Context, *models.QueuedOperation) error {
				if calls.Add(1) == 1 {
					close(started)
					<-release
					return errors.New("http 503")
				}
				return nil
			})
			q, st, aud := newTestQueue(t, tr, Options{})
			ctx := context.Background()

			id := enqueue(t, q, "/profile", models.PriorityNormal)
			if tt.exhausted {
				op, err := st.Operations().Get(ctx, id)
				require.NoError(t, err)
				op.RetryCount = op.MaxRetries
				require.NoError(t, st.Operations().Put(ctx, op))
			}

			done := make(chan Report, 1)
			go func() {
				r, err := q.Drain(ctx)
				assert.NoError(t, err)
				done <- r
			}()

			<-started
			require.NoError(t, q.Retry(ctx, id))
			close(release)
			report := <-done

			assert.Equal(t, 1, report.Failed)
			assert.Zero(t, report.DeadLettered)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			assert.Empty(t, pending, "a delivered operation must stay delivered")
			dead, err := q.DeadLetters(ctx)
			require.NoError(t, err)
			assert.Empty(t, dead)
			aud.mu.Lock()
			assert.Empty(t, aud.calls)
			aud.mu.Unlock()
		})
	}
}

func TestStats_EmptyQueue(t *testing.T) {
	q, _, _ := newTestQueue(t, recordingTransport(&recorder{}, nil), Options{})
	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Nil(t, stats.OldestEnqueuedAt)
	assert.Equal(t, float64(1), stats.SuccessRate)
}

// An Update to /profile queued while offline is replayed as exactly one PUT
// once the network comes back.
func TestRun_ProfileUpdateReplayedOnReconnect(t *testing.T) {
	type call struct {
		method, path, auth, body string
	}
	var mu sync.Mutex
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(b)})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := netx.NewClient(srv.URL, staticToken("tok"), time.Second, "offlinekit/test")
	q, _, _ := newTestQueue(t, NewHTTPTransport(client), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Enqueue(ctx, models.QueuedOperation{
		Kind:     models.OperationUpdate,
		Endpoint: "/profile",
		Payload:  []byte(`{"bio":"x"}`),
		Priority: models.PriorityNormal,
	})
	require.NoError(t, err)

	net := netwatch.NewManual(false)
	sched := &netwatch.ManualScheduler{}
	done := make(chan struct{})
	go func() {
		q.Run(ctx, net, sched)
		close(done)
	}()
	require.Eventually(t, func() bool { return sched.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	sched.Tick(time.Now())
	mu.Lock()
	assert.Empty(t, calls, "nothing is replayed while offline")
	mu.Unlock()

	net.Set(true)
	require.Eventually(t, func() bool {
		pending, err := q.Pending(context.Background())
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	assert.Equal(t, call{http.MethodPut, "/profile", "Bearer tok", `{"bio":"x"}`}, calls[0])
}

func TestHTTPTransport_Non2xxIsReplayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	q, st, _ := newTestQueue(t, NewHTTPTransport(netx.NewClient(srv.URL, nil, time.Second, "")), Options{})
	ctx := context.Background()
	id, err := q.Enqueue(ctx, models.QueuedOperation{Kind: models.OperationCreate, Endpoint: "/items", Payload: []byte(`{"n":1}`)})
	require.NoError(t, err)

	r, err := q.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.ErrorIs(t, r.Errors[0], ErrReplayFailure)
	var he *netx.HTTPError
	require.ErrorAs(t, r.Errors[0], &he)
	assert.Equal(t, http.StatusBadGateway, he.StatusCode)

	op, err := st.Operations().Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, 1, op.RetryCount)
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }
