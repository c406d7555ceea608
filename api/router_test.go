package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/civicdispatch/core/compose"
	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/ledger"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/neighborhood"
	"github.com/kilianp07/civicdispatch/core/registry"
)

type fakeService struct {
	reg        *registry.Registry
	dispatched []model.DispatchRequest
	dispatchFn func(model.DispatchRequest, model.GeoPoint) (dispatch.RoundReport, error)
	records    map[string]ledger.SubmissionRecord
	historyErr error
	panicOn    string
}

func newFakeService() *fakeService {
	return &fakeService{reg: registry.Default(), records: map[string]ledger.SubmissionRecord{}}
}

func (f *fakeService) Targets() []model.DispatchTarget { return f.reg.All() }

func (f *fakeService) Target(id string) (model.DispatchTarget, bool) {
	if id == f.panicOn {
		panic("boom")
	}
	return f.reg.Lookup(id)
}

func (f *fakeService) Nearby(p model.GeoPoint, radiusKm float64) []neighborhood.Match {
	if radiusKm <= 0 {
		radiusKm = neighborhood.DefaultRadiusKm
	}
	return neighborhood.Resolve(p, radiusKm, f.reg)
}

func (f *fakeService) DispatchIssue(_ context.Context, req model.DispatchRequest, loc model.GeoPoint) (dispatch.RoundReport, error) {
	f.dispatched = append(f.dispatched, req)
	if f.dispatchFn != nil {
		return f.dispatchFn(req, loc)
	}
	return dispatch.NewRoundReport(req.IssueID, 100, model.NewDispatchResult(nil)), nil
}

func (f *fakeService) CurrentRecord(_ context.Context, id string) (ledger.SubmissionRecord, error) {
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	return ledger.EmptyRecord(id), nil
}

func (f *fakeService) History(_ context.Context, _ string) ([]ledger.RoundEntry, error) {
	return []ledger.RoundEntry{}, f.historyErr
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorWire {
	t.Helper()
	var e errorWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

const validRequest = `{"title":"Pothole","description":"Deep pothole","category":"roads",` +
	`"location":{"lat":19.07,"lng":72.87},"reporter_display_name":"Asha"}`

func TestBearerAuth(t *testing.T) {
	h := NewRouter(newFakeService(), "secret", nil)

	rec := do(t, h, http.MethodGet, "/api/targets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodGet, "/api/targets", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/targets", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoTokenDisablesAuth(t *testing.T) {
	h := NewRouter(newFakeService(), "", nil)
	rec := do(t, h, http.MethodGet, "/api/targets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var targets []model.DispatchTarget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	require.Len(t, targets, len(registry.DefaultTargets()))
	assert.Equal(t, "mumbai", targets[0].ID)
}

func TestGetTarget(t *testing.T) {
	h := NewRouter(newFakeService(), "", nil)

	rec := do(t, h, http.MethodGet, "/api/targets/pune", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tgt model.DispatchTarget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tgt))
	assert.Equal(t, "Pune Municipal Corporation", tgt.DisplayName)

	rec = do(t, h, http.MethodGet, "/api/targets/atlantis", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "atlantis")
}

func TestNearby(t *testing.T) {
	h := NewRouter(newFakeService(), "", nil)

	rec := do(t, h, http.MethodGet, "/api/targets/nearby?lat=19.07&lng=72.87&radius_km=200", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matches []neighborhood.Match
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
	require.Len(t, matches, 2)
	assert.Equal(t, "mumbai", matches[0].Target.ID)
	assert.Equal(t, "pune", matches[1].Target.ID)
	assert.Less(t, matches[0].DistanceKm, matches[1].DistanceKm)

	for _, q := range []string{"lng=72.87", "lat=x&lng=72.87", "lat=91&lng=0", "lat=0&lng=0&radius_km=abc"} {
		rec = do(t, h, http.MethodGet, "/api/targets/nearby?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestDispatchUsesPathIssueID(t *testing.T) {
	svc := newFakeService()
	h := NewRouter(svc, "", nil)

	body := `{"request":` + strings.Replace(validRequest, `{`, `{"issue_id":"ignored",`, 1) +
		`,"user_location":{"lat":19.07,"lng":72.87}}`
	rec := do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.dispatched, 1)
	assert.Equal(t, "ISS-1", svc.dispatched[0].IssueID)

	var report dispatch.RoundReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, model.RoundEmpty, report.Status)
	assert.Equal(t, "ISS-1", report.IssueID)
}

func TestDispatchErrors(t *testing.T) {
	svc := newFakeService()
	h := NewRouter(svc, "", nil)

	rec := do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", `{"request":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", `{"unknown":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", `{} {}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.dispatchFn = func(model.DispatchRequest, model.GeoPoint) (dispatch.RoundReport, error) {
		return dispatch.RoundReport{}, errors.Join(dispatch.ErrOrchestratorFault, dispatch.ErrInvalidRequest)
	}
	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.dispatchFn = func(model.DispatchRequest, model.GeoPoint) (dispatch.RoundReport, error) {
		return dispatch.RoundReport{}, errors.New("ledger down")
	}
	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/dispatch", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ledger down", decodeError(t, rec).Error)
}

func TestCompose(t *testing.T) {
	h := NewRouter(newFakeService(), "", nil)

	rec := do(t, h, http.MethodPost, "/api/issues/ISS-1/compose/mumbai", validRequest, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msg compose.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "complaints@mcgm.gov.in", msg.Recipient)
	assert.Equal(t, "Civic Issue Report - Roads", msg.Subject)
	assert.Contains(t, msg.Body, "- Title: Pothole")
	assert.True(t, strings.HasPrefix(msg.MailtoURL, "mailto:"))

	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/compose/atlantis", validRequest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/issues/ISS-1/compose/mumbai", `{"title":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionsAndHistory(t *testing.T) {
	svc := newFakeService()
	svc.records["ISS-2"] = ledger.SubmissionRecord{
		IssueID: "ISS-2",
		Status:  model.RoundPartial,
		Outcomes: []model.DispatchOutcome{
			{TargetID: "mumbai", Success: true},
			{TargetID: "pune", Success: false},
		},
	}
	h := NewRouter(svc, "", nil)

	rec := do(t, h, http.MethodGet, "/api/issues/ISS-2/submissions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got ledger.SubmissionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.RoundPartial, got.Status)
	assert.Len(t, got.Outcomes, 2)

	rec = do(t, h, http.MethodGet, "/api/issues/nobody/submissions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.Outcomes)

	rec = do(t, h, http.MethodGet, "/api/issues/ISS-2/history", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.historyErr = errors.New("disk")
	rec = do(t, h, http.MethodGet, "/api/issues/ISS-2/history", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecoverJSON(t *testing.T) {
	svc := newFakeService()
	svc.panicOn = "kaboom"
	h := NewRouter(svc, "", nil)

	rec := do(t, h, http.MethodGet, "/api/targets/kaboom", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "internal error", e.Error)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}
