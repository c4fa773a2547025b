package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sib-network/prover-service/x/proofjob"
	"github.com/sib-network/prover-service/x/proofjob/queue"
	"github.com/sib-network/prover-service/x/proofjob/store"
)

type brokenQueue struct{}

func (brokenQueue) Enqueue(ctx context.Context, req proofjob.Request) error {
	return errors.New("broker connection refused")
}

func (brokenQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	return nil, errors.New("broker connection refused")
}

func (brokenQueue) Close() error { return nil }

// orderingQueue fails the dispatch unless the job's record is already
// readable, pinning the write-before-enqueue ordering.
type orderingQueue struct {
	inner queue.Queue
	store store.Store
}

func (q *orderingQueue) Enqueue(ctx context.Context, req proofjob.Request) error {
	if _, ok, err := q.store.Get(ctx, req.JobID); err != nil || !ok {
		return errors.New("record not written before dispatch")
	}
	return q.inner.Enqueue(ctx, req)
}

func (q *orderingQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	return q.inner.Dequeue(ctx)
}

func (q *orderingQueue) Close() error { return q.inner.Close() }

// trackingStore counts writes and deletes per job id.
type trackingStore struct {
	store.Store

	mu      sync.Mutex
	written []string
	deleted []string
}

func (s *trackingStore) Set(ctx context.Context, rec *proofjob.Record) error {
	s.mu.Lock()
	s.written = append(s.written, rec.JobID)
	s.mu.Unlock()
	return s.Store.Set(ctx, rec)
}

func (s *trackingStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, jobID)
	s.mu.Unlock()
	return s.Store.Delete(ctx, jobID)
}

func testHandler(t *testing.T, q queue.Queue) (*Handler, store.Store, *mux.Router) {
	t.Helper()
	log := zerolog.New(io.Discard)

	if q == nil {
		mq := queue.NewMemory(16, log)
		t.Cleanup(func() { _ = mq.Close() })
		q = mq
	}

	st, err := store.New(t.Context(), store.Config{Backend: "syncmap", Retention: time.Minute}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := NewHandler(q, st, HealthInfo{
		Version:    "1.0.0",
		EzklMode:   "simulated",
		BrokerAddr: "redis://localhost:6379/0",
	}, log)
	r := mux.NewRouter()
	h.RegisterMux(r)
	return h, st, r
}

func submitBody(t *testing.T, agentID string, returns []float64) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(map[string]any{"agent_id": agentID, "returns": returns})
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestHandleSubmit_DispatchesJob(t *testing.T) {
	log := zerolog.New(io.Discard)
	mq := queue.NewMemory(16, log)
	t.Cleanup(func() { _ = mq.Close() })
	_, st, router := testHandler(t, mq)

	req := httptest.NewRequest(http.MethodPost, routeProve, submitBody(t, "agent-7", []float64{0.01, -0.02, 0.03}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp submitResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.JobID, jobIDLen)
	require.Equal(t, "agent-7", resp.AgentID)
	require.Equal(t, "pending", resp.Status)

	// The job landed on the queue and a pending record exists.
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	delivery, err := mq.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, resp.JobID, delivery.Request.JobID)
	require.Equal(t, []float64{0.01, -0.02, 0.03}, delivery.Request.Returns)

	stored, ok, err := st.Get(t.Context(), resp.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, proofjob.StatePending, stored.State)
}

func TestHandleSubmit_DistinctIDsForIdenticalPayloads(t *testing.T) {
	_, _, router := testHandler(t, nil)

	ids := make(map[string]struct{})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, routeProve, submitBody(t, "agent-dup", []float64{0.01, 0.02}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp submitResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		ids[resp.JobID] = struct{}{}
	}
	require.Len(t, ids, 3)
}

func TestHandleSubmit_RejectsInvalidRequests(t *testing.T) {
	log := zerolog.New(io.Discard)
	mq := queue.NewMemory(16, log)
	t.Cleanup(func() { _ = mq.Close() })
	_, _, router := testHandler(t, mq)

	tooMany := make([]float64, proofjob.ReturnsMaxLen+1)
	cases := []struct {
		name string
		body io.Reader
	}{
		{"malformed json", bytes.NewReader([]byte(`{"agent_id": `))},
		{"empty agent id", submitBody(t, "", []float64{0.01})},
		{"no returns", submitBody(t, "agent-1", nil)},
		{"too many returns", submitBody(t, "agent-1", tooMany)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, routeProve, tc.body)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// Nothing was enqueued for the rejected submissions.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err := mq.Dequeue(ctx)
	require.Error(t, err)
}

func TestHandleSubmit_RecordWrittenBeforeDispatch(t *testing.T) {
	log := zerolog.New(io.Discard)

	mq := queue.NewMemory(16, log)
	t.Cleanup(func() { _ = mq.Close() })
	st, err := store.New(t.Context(), store.Config{Backend: "syncmap", Retention: time.Minute}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// The executor owns the record once the job is on the broker, so the
	// gateway's pending write must be readable at dispatch time.
	h := NewHandler(&orderingQueue{inner: mq, store: st}, st, HealthInfo{}, log)
	router := mux.NewRouter()
	h.RegisterMux(router)

	req := httptest.NewRequest(http.MethodPost, routeProve, submitBody(t, "agent-order", []float64{0.01, 0.02}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSubmit_BrokerDown(t *testing.T) {
	log := zerolog.New(io.Discard)

	inner, err := store.New(t.Context(), store.Config{Backend: "syncmap", Retention: time.Minute}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close() })
	st := &trackingStore{Store: inner}

	h := NewHandler(brokenQueue{}, st, HealthInfo{}, log)
	router := mux.NewRouter()
	h.RegisterMux(router)

	req := httptest.NewRequest(http.MethodPost, routeProve, submitBody(t, "agent-9", []float64{0.01}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "worker_unavailable")

	// The failed dispatch leaves no record behind.
	st.mu.Lock()
	written, deleted := st.written, st.deleted
	st.mu.Unlock()
	require.Len(t, written, 1)
	require.Equal(t, written, deleted)
	_, found, err := st.Get(t.Context(), written[0])
	require.NoError(t, err)
	require.False(t, found)
}

func TestHandleStatus_UnknownJobReadsAsPending(t *testing.T) {
	_, _, router := testHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/prove/nope00000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var view proofjob.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "nope00000000", view.JobID)
	require.Equal(t, "pending", view.Status)
	require.Zero(t, view.Progress)
	require.Nil(t, view.Result)
}

func TestHandleStatus_CompletedJobIncludesResult(t *testing.T) {
	_, st, router := testHandler(t, nil)

	rec := &proofjob.Record{
		JobID:    "done00000001",
		State:    proofjob.StateSuccess,
		Progress: 100,
		Result: &proofjob.Result{
			JobID:       "done00000001",
			AgentID:     "agent-done",
			SharpeRatio: 1.2345,
			ProofHex:    "0xdead",
			Instances:   []string{"0x01"},
			Verified:    true,
			Mode:        proofjob.ModeSimulated,
		},
	}
	require.NoError(t, st.Set(t.Context(), rec))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/prove/%s", rec.JobID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var view proofjob.StatusView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, "completed", view.Status)
	require.Equal(t, 100, view.Progress)
	require.NotNil(t, view.Result)
	require.Equal(t, "agent-done", view.Result.AgentID)
	require.True(t, view.Result.Verified)
}

func TestHandleHealth(t *testing.T) {
	_, _, router := testHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, routeHealth, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "sib-prover", resp.Service)
	require.Equal(t, "simulated", resp.EzklMode)
	require.False(t, resp.EzklAvailable)
	require.Nil(t, resp.EzklVersion)
	require.Equal(t, "redis://localhost:6379/0", resp.CeleryBroker)
}
