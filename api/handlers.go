package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/civicdispatch/core/compose"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/infra/logger"
)

type handlers struct {
	svc Service
	log logger.Logger
}

// dispatchBody is the payload of POST /api/issues/{id}/dispatch. The issue id
// in the path wins over the one in the request.
type dispatchBody struct {
	Request      model.DispatchRequest `json:"request"`
	UserLocation model.GeoPoint        `json:"user_location"`
}

func (h *handlers) listTargets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Targets())
}

func (h *handlers) getTarget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.svc.Target(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: target %q", errNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), "lat", true)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	lng, err := floatParam(q.Get("lng"), "lng", true)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	radius, err := floatParam(q.Get("radius_km"), "radius_km", false)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	p := model.GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Nearby(p, radius))
}

func (h *handlers) dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := bindJSON[dispatchBody](w, r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	body.Request.IssueID = chi.URLParam(r, "id")
	report, err := h.svc.DispatchIssue(r.Context(), body.Request, body.UserLocation)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Errorf("dispatch issue %s: %v", body.Request.IssueID, err)
		}
		writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) compose(w http.ResponseWriter, r *http.Request) {
	req, err := bindJSON[model.DispatchRequest](w, r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	req.IssueID = chi.URLParam(r, "id")
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	targetID := chi.URLParam(r, "targetID")
	t, ok := h.svc.Target(targetID)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: target %q", errNotFound, targetID))
		return
	}
	writeJSON(w, http.StatusOK, compose.Compose(req, t))
}

func (h *handlers) submissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.svc.CurrentRecord(r.Context(), id)
	if err != nil {
		h.log.Errorf("current record %s: %v", id, err)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.log.Errorf("history %s: %v", id, err)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func floatParam(raw, name string, required bool) (float64, error) {
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%w: missing %s", errBadRequest, name)
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}
