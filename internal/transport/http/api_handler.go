package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
)

// UserHeader carries the authenticated user id, set by the gateway in front of the service.
const UserHeader = "X-User-ID"

// APIHandler exposes the quest use cases as JSON endpoints.
type APIHandler struct {
	service *app.QuestService
	logger  *zap.Logger
}

func NewAPIHandler(service *app.QuestService, logger *zap.Logger) *APIHandler {
	return &APIHandler{service: service, logger: logger}
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/answers", h.submitAnswer)
	mux.HandleFunc("GET /api/words/{wordId}", h.wordState)
	mux.HandleFunc("GET /api/review/due", h.dueWords)
	mux.HandleFunc("GET /api/sessions", h.sessions)
	mux.HandleFunc("POST /api/sessions/{number}/answers", h.submitQuestAnswer)
	mux.HandleFunc("POST /api/sessions/{number}/complete", h.completeSession)
	mux.HandleFunc("POST /api/guest/merge", h.mergeGuest)
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /api/me/xp", h.balance)
}

type answerRequest struct {
	WordID  string `json:"wordId"`
	Correct bool   `json:"correct"`
}

type dueResponse struct {
	Count int                `json:"count"`
	Words []domain.WordState `json:"words"`
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), userID(r), req.WordID, req.Correct, time.Time{})
	h.respond(w, r, result, err)
}

func (h *APIHandler) wordState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.WordState(r.Context(), userID(r), r.PathValue("wordId"))
	h.respond(w, r, state, err)
}

func (h *APIHandler) dueWords(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	words, err := h.service.DueWords(r.Context(), userID(r), limit)
	if words == nil {
		words = []domain.WordState{}
	}
	h.respond(w, r, dueResponse{Count: len(words), Words: words}, err)
}

func (h *APIHandler) sessions(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.SessionsProgress(r.Context(), userID(r))
	h.respond(w, r, progress, err)
}

func (h *APIHandler) submitQuestAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.SubmitQuestAnswer(r.Context(), userID(r), session.ID, req.WordID, req.Correct, time.Time{})
	h.respond(w, r, result, err)
}

func (h *APIHandler) completeSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	result, err := h.service.RequestSessionCompletion(r.Context(), userID(r), session.ID)
	h.respond(w, r, result, err)
}

func (h *APIHandler) mergeGuest(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.GuestProgressSnapshot
	if !decode(w, r, &snapshot) {
		return
	}
	result, err := h.service.MergeGuestProgress(r.Context(), userID(r), snapshot)
	h.respond(w, r, result, err)
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	board, err := h.service.Leaderboard(r.Context(), userID(r), limit)
	h.respond(w, r, board, err)
}

func (h *APIHandler) balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context(), userID(r))
	h.respond(w, r, balance, err)
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (domain.QuestSession, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		http.Error(w, "invalid session number", http.StatusBadRequest)
		return domain.QuestSession{}, false
	}
	session, err := h.service.SessionByNumber(r.Context(), number)
	if err != nil {
		h.fail(w, r, err)
		return domain.QuestSession{}, false
	}
	return session, true
}

func (h *APIHandler) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.String("user_id", userID(r)), zap.Error(err))
	}
	writeError(w, err)
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicError maps err to a status and the message a client may see. Server-side failures expose
// only the status text.
func publicError(err error) (int, string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		return status, http.StatusText(status)
	}
	return status, err.Error()
}

func writeError(w http.ResponseWriter, err error) {
	status, message := publicError(err)
	writeJSON(w, status, errorPayload{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
