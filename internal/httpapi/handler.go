package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net/http"
	"strings"
	"time"

	"qms/waitlist-service/internal/captcha"
	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/queue"
	"qms/waitlist-service/internal/store"

	"github.com/google/uuid"
)

const maxContactInfoLength = 255

type Notifier interface {
	Welcome(ctx context.Context, entry models.QueueEntry, position int) error
}

type Handler struct {
	store                  store.EntryStore
	verifier               captcha.Verifier
	notifier               Notifier
	broker                 events.Broker
	admin                  *AdminAuth
	checkInInterval        time.Duration
	historySampleSize      int
	defaultWaitPerPosition time.Duration
	statsWindow            time.Duration
	heartbeat              time.Duration
	now                    func() time.Time
}

type Options struct {
	AdminPassword          string
	AdminPasswordHash      string
	CheckInInterval        time.Duration
	HistorySampleSize      int
	DefaultWaitPerPosition time.Duration
	StatsWindow            time.Duration
	Heartbeat              time.Duration
}

type joinRequest struct {
	ContactInfo  string `json:"contactInfo"`
	CaptchaToken string `json:"captchaToken"`
	FCMToken     string `json:"fcmToken"`
}

type checkInResponse struct {
	Message         string    `json:"message"`
	NextCheckInTime time.Time `json:"nextCheckInTime"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewHandler(store store.EntryStore, verifier captcha.Verifier, notifier Notifier, broker events.Broker, options Options) *Handler {
	if broker == nil {
		broker = events.NewHub()
	}
	interval := options.CheckInInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	sample := options.HistorySampleSize
	if sample <= 0 {
		sample = 10
	}
	fallback := options.DefaultWaitPerPosition
	if fallback <= 0 {
		fallback = 5 * time.Minute
	}
	window := options.StatsWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	heartbeat := options.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Handler{
		store:                  store,
		verifier:               verifier,
		notifier:               notifier,
		broker:                 broker,
		admin:                  NewAdminAuth(options.AdminPassword, options.AdminPasswordHash),
		checkInInterval:        interval,
		historySampleSize:      sample,
		defaultWaitPerPosition: fallback,
		statsWindow:            window,
		heartbeat:              heartbeat,
		now:                    time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/queue", h.handleJoin)
	mux.HandleFunc("/api/queue/list", h.handleList)
	mux.HandleFunc("/api/queue/stats", h.handleStats)
	mux.HandleFunc("/api/queue/{id}", h.handleStatus)
	mux.HandleFunc("/api/queue/{id}/checkin", h.handleCheckIn)
	mux.HandleFunc("/api/queue/{id}/updates", h.handleUpdates)
	mux.Handle(realtimePrefix+"/", h.realtimeHandler())
	mux.Handle("/api/admin/", h.admin.Middleware(h.adminRoutes()))
	mux.HandleFunc("/", h.handleNotFound)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "Not found")
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ContactInfo = strings.TrimSpace(req.ContactInfo)
	req.CaptchaToken = strings.TrimSpace(req.CaptchaToken)
	req.FCMToken = strings.TrimSpace(req.FCMToken)

	if req.ContactInfo == "" || req.CaptchaToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "contactInfo and captchaToken are required")
		return
	}
	if len(req.ContactInfo) > maxContactInfoLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "contactInfo is too long")
		return
	}

	ok, err := h.verifier.Verify(r.Context(), req.CaptchaToken, clientIP(r))
	if err != nil {
		log.Printf("captcha verify error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to verify CAPTCHA")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_captcha", "Invalid CAPTCHA")
		return
	}

	entry, err := h.store.CreateEntry(r.Context(), store.CreateEntryInput{
		ContactInfo: req.ContactInfo,
		FCMToken:    req.FCMToken,
		JoinedAt:    h.now().UTC(),
	})
	if err != nil {
		h.fail(w, "join queue", err, "Failed to join queue")
		return
	}

	ahead, err := h.store.CountAhead(r.Context(), entry.JoinedAt)
	if err != nil {
		h.fail(w, "join queue", err, "Failed to join queue")
		return
	}
	entry.Position = ahead + 1

	h.publish(r.Context(), events.TypeJoined, entry.ID)
	if h.notifier != nil {
		if err := h.notifier.Welcome(r.Context(), entry, entry.Position); err != nil {
			log.Printf("welcome notify error entry_id=%s: %v", entry.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.statusFor(r.Context(), entryID)
	if err != nil {
		h.fail(w, "queue status", err, "Failed to get queue status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	entry, err := h.store.CheckIn(r.Context(), entryID, h.now().UTC())
	if err != nil {
		h.fail(w, "check in", err, "Failed to check in")
		return
	}
	h.publish(r.Context(), events.TypeCheckedIn, entry.ID)

	writeJSON(w, http.StatusOK, checkInResponse{
		Message:         "Check-in successful",
		NextCheckInTime: entry.CheckInBase().Add(h.checkInInterval),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	entries, err := h.store.ListActive(r.Context())
	if err != nil {
		h.fail(w, "queue list", err, "Failed to get queue list")
		return
	}

	now := h.now()
	ranked := queue.Rank(entries)
	items := make([]models.ListItem, 0, len(ranked))
	for _, entry := range ranked {
		items = append(items, models.ListItem{
			ID:       entry.ID,
			Position: entry.Position,
			WaitTime: queue.MinutesSince(entry.WaitStart(), now),
			Status:   entry.Status,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	samples, err := h.store.RecentHistory(r.Context(), h.historySampleSize)
	if err != nil {
		h.fail(w, "queue stats", err, "Failed to get queue stats")
		return
	}
	active, err := h.store.CountActive(r.Context())
	if err != nil {
		h.fail(w, "queue stats", err, "Failed to get queue stats")
		return
	}
	completed, err := h.store.CountCompletedSince(r.Context(), h.now().UTC().Add(-h.statsWindow))
	if err != nil {
		h.fail(w, "queue stats", err, "Failed to get queue stats")
		return
	}

	writeJSON(w, http.StatusOK, models.QueueStats{
		AvgWaitTime:    queue.EstimateWaitMinutes(1, samples, h.defaultWaitPerPosition),
		TotalUsers:     active,
		CompletionRate: queue.CompletionRate(completed, active),
	})
}

// statusFor builds the public view of one entry. Position and estimate stay zero unless the entry is active.
func (h *Handler) statusFor(ctx context.Context, entryID string) (models.QueueStatus, error) {
	entry, err := h.store.GetEntry(ctx, entryID)
	if err != nil {
		return models.QueueStatus{}, err
	}
	status := models.QueueStatus{
		ID:              entry.ID,
		Status:          entry.Status,
		NextCheckInTime: entry.CheckInBase().Add(h.checkInInterval),
	}
	if entry.Status != models.StatusActive {
		return status, nil
	}

	ahead, err := h.store.CountAhead(ctx, entry.JoinedAt)
	if err != nil {
		return models.QueueStatus{}, err
	}
	samples, err := h.store.RecentHistory(ctx, h.historySampleSize)
	if err != nil {
		return models.QueueStatus{}, err
	}
	status.Position = ahead + 1
	status.EstimatedWaitTime = queue.EstimateWaitMinutes(status.Position, samples, h.defaultWaitPerPosition)
	return status, nil
}

func (h *Handler) publish(ctx context.Context, eventType, entryID string) {
	event := events.Event{Type: eventType, EntryID: entryID, At: h.now().UTC()}
	if err := h.broker.Publish(ctx, event); err != nil {
		log.Printf("publish event error type=%s: %v", eventType, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, operation string, err error, message string) {
	status, code, msg := mapError(err, message)
	if status == http.StatusInternalServerError {
		log.Printf("%s error: %v", operation, err)
	}
	writeError(w, status, code, msg)
}

func entryIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	entryID := strings.TrimSpace(r.PathValue("id"))
	if !isValidUUID(entryID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be a UUID")
		return "", false
	}
	return entryID, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

// mapError turns store sentinels into responses. Anything unrecognised becomes a 500 carrying fallback.
func mapError(err error, fallback string) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "Queue entry not found"
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_request", "unknown status"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "entry state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", fallback
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
