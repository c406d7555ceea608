package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/civicdispatch/core/events"
	"github.com/kilianp07/civicdispatch/core/metrics"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/internal/eventbus"
)

func testRequest() model.DispatchRequest {
	return model.DispatchRequest{
		IssueID:             "issue-1",
		Title:               "Pothole on main road",
		Description:         "Deep pothole near the bus stop",
		Category:            model.CategoryRoads,
		Location:            model.GeoPoint{Lat: 19.07, Lng: 72.87},
		ReporterDisplayName: "Asha",
	}
}

func targets(ids ...string) []model.DispatchTarget {
	out := make([]model.DispatchTarget, len(ids))
	for i, id := range ids {
		out[i] = model.DispatchTarget{ID: id, DisplayName: strings.ToUpper(id) + " Corp"}
	}
	return out
}

func newTestOrchestrator(t *testing.T, tr Transport) *Orchestrator {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	o, err := NewOrchestrator(tr, "", nil)
	require.NoError(t, err)
	o.token = func() string { return "TOKEN" }
	return o
}

func TestNewOrchestrator_NilTransport(t *testing.T) {
	_, err := NewOrchestrator(nil, "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrchestratorFault)
	assert.ErrorIs(t, err, ErrNoTransport)
}

// Outcomes follow target order even when later targets finish first.
func TestSubmitRound_PreservesOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 60 * time.Millisecond, "b": 30 * time.Millisecond, "c": 0}
	tr := TransportFunc(func(_ context.Context, d Delivery) error {
		time.Sleep(delays[d.Target.ID])
		return nil
	})
	o := newTestOrchestrator(t, tr)

	res, err := o.SubmitRound(context.Background(), testRequest(), targets("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, res.Outcomes[i].TargetID)
	}
	assert.True(t, res.AggregateSuccess)
	assert.Equal(t, model.RoundSucceeded, res.Status)
}

func TestSubmitRound_PartialFailure(t *testing.T) {
	tr := TransportFunc(func(_ context.Context, d Delivery) error {
		if d.Target.ID == "t2" {
			return errors.New("Municipality server temporarily unavailable")
		}
		return nil
	})
	o := newTestOrchestrator(t, tr)

	res, err := o.SubmitRound(context.Background(), testRequest(), targets("t1", "t2"))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	ok, failed := res.Outcomes[0], res.Outcomes[1]
	assert.True(t, ok.Success)
	assert.Equal(t, "Successfully submitted to T1 Corp", ok.Message)
	assert.Equal(t, "MC-T1-TOKEN", ok.ReferenceID)

	assert.False(t, failed.Success)
	assert.Equal(t, "Failed to submit to T2 Corp: Municipality server temporarily unavailable", failed.Message)
	assert.Empty(t, failed.ReferenceID)

	assert.True(t, res.AggregateSuccess)
	assert.Equal(t, model.RoundPartial, res.Status)
	assert.Equal(t, 1, res.Succeeded())
}

func TestSubmitRound_EmptyVersusAllFailed(t *testing.T) {
	var calls atomic.Int32
	tr := TransportFunc(func(context.Context, Delivery) error {
		calls.Add(1)
		return errors.New("down")
	})
	o := newTestOrchestrator(t, tr)

	empty, err := o.SubmitRound(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.False(t, empty.AggregateSuccess)
	assert.Equal(t, model.RoundEmpty, empty.Status)
	assert.NotNil(t, empty.Outcomes)
	assert.Empty(t, empty.Outcomes)
	assert.Zero(t, calls.Load())

	failed, err := o.SubmitRound(context.Background(), testRequest(), targets("x", "y"))
	require.NoError(t, err)
	assert.False(t, failed.AggregateSuccess)
	assert.Equal(t, model.RoundFailed, failed.Status)
	assert.Len(t, failed.Outcomes, 2)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSubmitRound_PanicIsIsolated(t *testing.T) {
	tr := TransportFunc(func(_ context.Context, d Delivery) error {
		if d.Target.ID == "boom" {
			panic("connection table corrupted")
		}
		return nil
	})
	o := newTestOrchestrator(t, tr)

	res, err := o.SubmitRound(context.Background(), testRequest(), targets("ok1", "boom", "ok2"))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.True(t, res.Outcomes[0].Success)
	assert.False(t, res.Outcomes[1].Success)
	assert.Contains(t, res.Outcomes[1].Message, ErrTransportPanic.Error())
	assert.Empty(t, res.Outcomes[1].ReferenceID)
	assert.False(t, res.Outcomes[1].Timestamp.IsZero())
	assert.True(t, res.Outcomes[2].Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(transportPanics))
}

// A slow failing target must not delay the others: attempts run concurrently,
// so the round takes about as long as its slowest attempt.
func TestSubmitRound_RunsConcurrently(t *testing.T) {
	const delay = 80 * time.Millisecond
	var mu sync.Mutex
	inFlight, peak := 0, 0
	tr := TransportFunc(func(context.Context, Delivery) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(delay)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return errors.New("slow failure")
	})
	o := newTestOrchestrator(t, tr)

	start := time.Now()
	_, err := o.SubmitRound(context.Background(), testRequest(), targets("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*delay)
	assert.Equal(t, 4, peak)
}

func TestSubmitRound_CancelledContextStillCompletes(t *testing.T) {
	tr := TransportFunc(func(ctx context.Context, _ Delivery) error {
		return ctx.Err()
	})
	o := newTestOrchestrator(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.SubmitRound(ctx, testRequest(), targets("a"))
	require.NoError(t, err)
	assert.Equal(t, model.RoundSucceeded, res.Status)
}

func TestSubmitRound_Faults(t *testing.T) {
	o := newTestOrchestrator(t, TransportFunc(func(context.Context, Delivery) error { return nil }))

	bad := testRequest()
	bad.Title = ""
	_, err := o.SubmitRound(context.Background(), bad, targets("a"))
	assert.ErrorIs(t, err, ErrOrchestratorFault)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.SubmitRound(context.Background(), testRequest(), targets("a", "b", "a"))
	assert.ErrorIs(t, err, ErrOrchestratorFault)
	assert.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestAttemptDelivery_ComposesMessage(t *testing.T) {
	var got Delivery
	tr := TransportFunc(func(_ context.Context, d Delivery) error {
		got = d
		return nil
	})
	o := newTestOrchestrator(t, tr)
	target := model.DispatchTarget{
		ID:              "pune",
		DisplayName:     "Pune Municipal Corporation",
		ContactEmail:    "complaints@punecorporation.org",
		MessageTemplate: "{title} reported by {reporter}",
	}

	out := o.AttemptDelivery(context.Background(), testRequest(), target)
	assert.True(t, out.Success)
	assert.Equal(t, "MC-PUNE-TOKEN", out.ReferenceID)
	assert.Equal(t, "Pothole on main road reported by Asha", got.Message.Body)
	assert.Equal(t, "complaints@punecorporation.org", got.Message.Recipient)
}

func TestReferenceID_Format(t *testing.T) {
	assert.Equal(t, "MC-MUMBAI-abc", ReferenceID("MC", "mumbai", "abc"))
	a, b := timeToken(), timeToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []metrics.OutcomeRecord
}

func (s *recordingSink) RecordOutcomes(r []metrics.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, r...)
	return nil
}

func TestSubmitRound_ObserversAndMetrics(t *testing.T) {
	tr := TransportFunc(func(_ context.Context, d Delivery) error {
		if d.Target.ID == "b" {
			return errors.New("down")
		}
		return nil
	})
	o := newTestOrchestrator(t, tr)
	sink := &recordingSink{}
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	o.SetMetricsSink(sink)
	o.SetEventBus(bus)

	_, err := o.SubmitRound(context.Background(), testRequest(), targets("a", "b"))
	require.NoError(t, err)

	require.Len(t, sink.outcomes, 2)
	assert.Equal(t, "a", sink.outcomes[0].TargetID)
	assert.Equal(t, model.CategoryRoads, sink.outcomes[0].Category)

	var started, outcomes, completed int
	for i := 0; i < 4; i++ {
		select {
		case ev := <-sub:
			switch e := ev.(type) {
			case events.RoundStartedEvent:
				started++
			case events.OutcomeEvent:
				outcomes++
			case events.RoundCompletedEvent:
				completed++
				assert.Equal(t, model.RoundPartial, e.Status)
				assert.Equal(t, 1, e.Succeeded)
				assert.Equal(t, 2, e.Total)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, outcomes)
	assert.Equal(t, 1, completed)

	assert.Equal(t, 1.0, testutil.ToFloat64(deliveriesTotal.WithLabelValues("a", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(deliveriesTotal.WithLabelValues("b", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(roundsTotal.WithLabelValues("partial")))
	assert.Equal(t, 0.5, testutil.ToFloat64(roundSuccessRate))
}
