package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hperssn/coindoro/internal/clock"
	"github.com/hperssn/coindoro/internal/domain"
	"github.com/hperssn/coindoro/internal/runner"
	"github.com/hperssn/coindoro/internal/storage"
)

var validate = validator.New()

type RouterConfig struct {
	Manager *runner.SessionManager
	// History may be nil when history is disabled.
	History storage.Repository
	// Defaults apply to fields a create request leaves out.
	Defaults domain.Settings
	Logger   *zap.SugaredLogger
	Clock    clock.Clock

	AllowAnonymous bool
	RateLimit      float64
}

type api struct {
	manager  *runner.SessionManager
	history  storage.Repository
	defaults domain.Settings
	log      *zap.SugaredLogger
	clock    clock.Clock
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	a := &api{
		manager:  cfg.Manager,
		history:  cfg.History,
		defaults: cfg.Defaults,
		log:      cfg.Logger,
		clock:    cfg.Clock,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(ExtractUserMiddleware(cfg.Logger, cfg.AllowAnonymous))

		r.Get("/sessions", a.listSessions)
		r.Get("/sessions/{id}", a.getSession)
		r.Get("/sessions/{id}/projection", a.getProjection)
		r.Get("/sessions/{id}/events", a.streamEvents)
		r.Get("/sessions/{id}/history", a.getSessionHistory)
		r.Get("/history", a.getRecentHistory)
		r.Get("/stats", a.getStats)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit > 0 {
				r.Use(newUserLimiter(cfg.RateLimit).middleware)
			}

			r.Post("/sessions", a.startSession)
			r.Delete("/sessions/{id}", a.stopSession)

			r.Post("/sessions/{id}/work", a.startWork)
			r.Post("/sessions/{id}/pause", a.action((*runner.Runner).Pause))
			r.Post("/sessions/{id}/resume", a.action((*runner.Runner).Resume))
			r.Post("/sessions/{id}/toggle", a.action((*runner.Runner).Toggle))
			r.Post("/sessions/{id}/restart", a.action((*runner.Runner).Restart))
			r.Post("/sessions/{id}/end-break", a.action((*runner.Runner).EndBreak))
			r.Post("/sessions/{id}/shop/open", a.action((*runner.Runner).OpenShop))
			r.Post("/sessions/{id}/shop/close", a.action((*runner.Runner).CloseShop))

			r.Post("/sessions/{id}/breaks", a.purchaseBreak)
			r.Put("/sessions/{id}/settings", a.updateSettings)
			r.Put("/sessions/{id}/view", a.setView)
		})
	})

	return r
}

type startSessionRequest struct {
	SessionLengthMinutes *int `json:"sessionLengthMinutes" validate:"omitempty,gte=5,lte=180"`
	MinutesPerRewardUnit *int `json:"minutesPerRewardUnit" validate:"omitempty,gte=0,lte=60"`
	AutoStart            bool `json:"autoStart"`
}

type startWorkRequest struct {
	SessionLengthMinutes *int `json:"sessionLengthMinutes" validate:"omitempty,gte=5,lte=180"`
	AutoStart            bool `json:"autoStart"`
}

type purchaseBreakRequest struct {
	Minutes              int  `json:"minutes" validate:"gte=0"`
	MinutesPerRewardUnit *int `json:"minutesPerRewardUnit" validate:"omitempty,gte=0,lte=60"`
}

type settingsRequest struct {
	SessionLengthMinutes int `json:"sessionLengthMinutes" validate:"gte=5,lte=180"`
	MinutesPerRewardUnit int `json:"minutesPerRewardUnit" validate:"gte=0,lte=60"`
}

type viewRequest struct {
	Expanded bool `json:"expanded"`
}

type projectionResponse struct {
	Display  domain.Units    `json:"display"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// decode reads an optional JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validate.Struct(dst)
}

// runnerFor resolves the session named in the URL, hiding sessions that
// belong to other users.
func (a *api) runnerFor(w http.ResponseWriter, r *http.Request) (*runner.Runner, bool) {
	rn, ok := a.manager.Get(chi.URLParam(r, "id"))
	if !ok || rn.UserID() != GetUserID(r) {
		respondError(w, "session not found", "not_found", http.StatusNotFound)
		return nil, false
	}
	return rn, true
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(r, &req); err != nil {
		respondError(w, "invalid request body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	settings := a.defaults
	if req.SessionLengthMinutes != nil {
		settings.SessionLength = time.Duration(*req.SessionLengthMinutes) * time.Minute
	}
	if req.MinutesPerRewardUnit != nil {
		settings.MinutesPerUnit = *req.MinutesPerRewardUnit
	}

	rn, err := a.manager.StartSession(GetUserID(r), settings, req.AutoStart)
	if err != nil {
		respondRejection(w, err)
		return
	}

	snap, err := rn.Snapshot()
	if err != nil {
		respondRejection(w, err)
		return
	}
	a.log.Infow("session started", "session", rn.ID(), "user", rn.UserID())
	respondJSON(w, snap, http.StatusCreated)
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	snaps := []domain.Snapshot{}
	for _, rn := range a.manager.Sessions(GetUserID(r)) {
		snap, err := rn.Snapshot()
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	respondJSON(w, snaps, http.StatusOK)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}
	snap, err := rn.Snapshot()
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

func (a *api) getProjection(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}
	display, snap, err := rn.Projection()
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, projectionResponse{Display: display, Snapshot: snap}, http.StatusOK)
}

func (a *api) stopSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.runnerFor(w, r); !ok {
		return
	}
	if err := a.manager.StopSession(chi.URLParam(r, "id")); err != nil {
		respondRejection(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// action adapts a body-less runner operation into a handler that answers
// with the post-operation snapshot.
func (a *api) action(op func(*runner.Runner) (domain.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn, ok := a.runnerFor(w, r)
		if !ok {
			return
		}
		snap, err := op(rn)
		if err != nil {
			respondRejection(w, err)
			return
		}
		respondJSON(w, snap, http.StatusOK)
	}
}

// startWork begins a fresh work session on an existing session, ending a
// running break first. The length defaults to the session's setting.
func (a *api) startWork(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}

	var req startWorkRequest
	if err := decode(r, &req); err != nil {
		respondError(w, "invalid request body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	length := rn.Settings().SessionLength
	if req.SessionLengthMinutes != nil {
		length = time.Duration(*req.SessionLengthMinutes) * time.Minute
	}

	snap, err := rn.StartWork(length, req.AutoStart)
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

func (a *api) purchaseBreak(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}

	var req purchaseBreakRequest
	if err := decode(r, &req); err != nil {
		respondError(w, "invalid request body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	minutesPerUnit := rn.Settings().MinutesPerUnit
	if req.MinutesPerRewardUnit != nil {
		minutesPerUnit = *req.MinutesPerRewardUnit
	}

	snap, err := rn.PurchaseBreak(req.Minutes, minutesPerUnit)
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

func (a *api) updateSettings(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, "invalid request body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	snap, err := rn.UpdateSettings(domain.Settings{
		SessionLength:  time.Duration(req.SessionLengthMinutes) * time.Minute,
		MinutesPerUnit: req.MinutesPerRewardUnit,
	})
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

func (a *api) setView(w http.ResponseWriter, r *http.Request) {
	rn, ok := a.runnerFor(w, r)
	if !ok {
		return
	}

	var req viewRequest
	if err := decode(r, &req); err != nil {
		respondError(w, "invalid request body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return
	}

	snap, err := rn.SetExpanded(req.Expanded)
	if err != nil {
		respondRejection(w, err)
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

func (a *api) historyEnabled(w http.ResponseWriter) bool {
	if a.history == nil {
		respondError(w, "history is disabled", "history_disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// getSessionHistory lists the closed intervals of a session. History
// outlives the runner, so stopped sessions are still answered.
func (a *api) getSessionHistory(w http.ResponseWriter, r *http.Request) {
	if !a.historyEnabled(w) {
		return
	}

	records, err := a.history.GetRecordsBySession(chi.URLParam(r, "id"))
	if err != nil {
		a.log.Errorw("failed to load session history", "err", err)
		respondError(w, "failed to load history", "internal", http.StatusInternalServerError)
		return
	}

	user := GetUserID(r)
	own := make([]storage.SessionRecord, 0, len(records))
	for _, rec := range records {
		if rec.UserID == user {
			own = append(own, rec)
		}
	}
	respondJSON(w, own, http.StatusOK)
}

func (a *api) getRecentHistory(w http.ResponseWriter, r *http.Request) {
	if !a.historyEnabled(w) {
		return
	}

	since := a.clock.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "since must be an RFC 3339 timestamp", "invalid_request", http.StatusBadRequest)
			return
		}
		since = t
	}

	records, err := a.history.GetRecentRecords(GetUserID(r), since)
	if err != nil {
		a.log.Errorw("failed to load recent history", "err", err)
		respondError(w, "failed to load history", "internal", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []storage.SessionRecord{}
	}
	respondJSON(w, records, http.StatusOK)
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	if !a.historyEnabled(w) {
		return
	}

	stats, err := a.history.GetStats(GetUserID(r))
	if err != nil {
		a.log.Errorw("failed to compute stats", "err", err)
		respondError(w, "failed to compute stats", "internal", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}
