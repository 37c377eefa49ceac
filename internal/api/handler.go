package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/claimguard/internal/bus"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
	"github.com/opensource-finance/claimguard/internal/report"
)

// Client-facing failure messages. Collaborator errors are never echoed.
const (
	msgDamageFailed      = "Failed to analyze damage. Please try again."
	msgChatFailed        = "Failed to get chatbot response."
	msgTranscribeFailed  = "Failed to transcribe audio. Please try again."
	msgAIUnavailable     = "AI assistance is not configured on this server."
	msgClaimNotFound     = "claim not found"
	msgInvalidJSON       = "invalid JSON request body"
	msgStorageFailed     = "failed to access claim storage"
	msgStoredClaimBroken = "failed to load claim"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	store         domain.ClaimStore
	cache         domain.Cache
	bus           domain.EventBus
	builder       *report.Builder
	collaborators domain.Collaborators
	version       string
	maxUpload     int64
	now           func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Handler{
		store:         deps.Store,
		cache:         deps.Cache,
		bus:           deps.Bus,
		builder:       deps.Builder,
		collaborators: deps.Collaborators,
		version:       deps.Version,
		maxUpload:     int64(maxUploadMB) << 20,
		now:           time.Now,
	}
}

// Health reports the state of the storage, cache and bus backends.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			checks[name] = "down"
			status = "degraded"
			return
		}
		checks[name] = "up"
	}
	if h.store != nil {
		check("store", func() error { return h.store.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.builder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// SubmitClaim handles POST /claims. The claim is stored as Pending and a
// submission event is published for background assessment.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := GetSessionID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.ClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claim, err := req.ToClaim(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	claim.ID = "claim-" + uuid.New().String()

	if err := h.store.SaveClaim(ctx, sessionID, claim); err != nil {
		slog.Error("failed to save claim",
			"claim_id", claim.ID,
			"session_id", sessionID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgStorageFailed)
		return
	}
	metrics.RecordClaimSubmitted(string(claim.Category))

	if h.bus != nil {
		payload, _ := json.Marshal(domain.ClaimEvent{
			SessionID: sessionID,
			ClaimID:   claim.ID,
			TraceID:   traceID,
			Category:  claim.Category,
		})
		pubCtx := bus.WithMetadata(ctx, map[string]string{"trace_id": traceID, "session_id": sessionID})
		if err := h.bus.Publish(pubCtx, domain.TopicClaimSubmitted, payload); err != nil {
			slog.Error("failed to publish claim submission",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	slog.Info("claim submitted",
		"claim_id", claim.ID,
		"session_id", sessionID,
		"category", claim.Category,
		"trace_id", traceID,
	)

	writeJSON(w, http.StatusCreated, claim)
}

// ListClaims handles GET /claims: the session's claims, newest first,
// with their current status and score.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := GetSessionID(ctx)

	claims, err := h.store.ListClaims(ctx, sessionID)
	if err != nil {
		slog.Error("failed to list claims", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, msgStorageFailed)
		return
	}

	summaries := make([]domain.ClaimSummary, 0, len(claims))
	for _, c := range claims {
		summaries = append(summaries, h.builder.Summary(c))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claims": summaries,
		"count":  len(summaries),
	})
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// DeleteClaim handles DELETE /claims/{id}.
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := GetSessionID(ctx)
	claimID := chi.URLParam(r, "id")

	err := h.store.DeleteClaim(ctx, sessionID, claimID)
	switch {
	case errors.Is(err, domain.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, msgClaimNotFound)
	case err != nil:
		slog.Error("failed to delete claim", "claim_id", claimID, "error", err)
		writeError(w, http.StatusInternalServerError, msgStorageFailed)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetAssessment handles GET /claims/{id}/assessment. Scores are computed
// fresh on every call.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.builder.Assess(claim))
}

// GetReport handles GET /claims/{id}/report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	rep := h.builder.Build(ctx, &report.Input{
		SessionID: GetSessionID(ctx),
		TraceID:   GetTraceID(ctx),
		Claim:     claim,
		StartTime: start,
	})
	writeJSON(w, http.StatusOK, rep)
}

// AnalyzeDamage handles POST /damage/analyze: multipart "photos" files and
// an optional "description" field.
func (h *Handler) AnalyzeDamage(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}

	files := form.File["photos"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrNoImages.Error())
		return
	}
	images := make([]domain.Media, 0, len(files))
	for _, fh := range files {
		m, err := readMedia(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded photo")
			return
		}
		if !strings.HasPrefix(m.MimeType, "image/") {
			writeError(w, http.StatusUnsupportedMediaType, "photo "+fh.Filename+" is not an image")
			return
		}
		images = append(images, m)
	}

	description := ""
	if v := form.Value["description"]; len(v) > 0 {
		description = v[0]
	}

	analysis, err := h.collaborators.Damage.Summarize(r.Context(), domain.DamageRequest{
		Images:  images,
		Context: description,
	})
	if err != nil {
		h.collaboratorError(w, r, "damage_summary", err, msgDamageFailed)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// GuidanceChat handles POST /chat/guidance.
func (h *Handler) GuidanceChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "userMessage is required")
		return
	}
	if !validHistory(req.History) {
		writeError(w, http.StatusBadRequest, "conversationHistory roles must be user or model")
		return
	}

	resp, err := h.collaborators.Guide.Guide(r.Context(), req)
	if err != nil {
		h.collaboratorError(w, r, "guidance_chat", err, msgChatFailed)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusChat handles POST /chat/status. The claim is looked up in the
// caller's session; an unknown ID is passed on as not found.
func (h *Handler) StatusChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.StatusChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClaimID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "claimId and userMessage are required")
		return
	}
	if !validHistory(req.History) {
		writeError(w, http.StatusBadRequest, "conversationHistory roles must be user or model")
		return
	}

	claim, err := h.store.GetClaim(ctx, GetSessionID(ctx), strings.TrimSpace(req.ClaimID))
	switch {
	case errors.Is(err, domain.ErrClaimNotFound):
		req.Claim = nil
	case err != nil:
		slog.Error("failed to load claim for status chat", "claim_id", req.ClaimID, "error", err)
		writeError(w, http.StatusInternalServerError, msgStorageFailed)
		return
	default:
		req.Claim = &domain.ClaimContext{
			Status:      h.builder.Assess(claim).Status,
			Description: claim.IncidentDetails.Description,
		}
	}

	resp, err := h.collaborators.Status.StatusUpdate(ctx, req)
	if err != nil {
		h.collaboratorError(w, r, "status_chat", err, msgChatFailed)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Transcribe handles POST /transcribe with a multipart "audio" file.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}
	files := form.File["audio"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	audio, err := readMedia(files[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded audio")
		return
	}
	if !isAudio(audio.MimeType) {
		writeError(w, http.StatusUnsupportedMediaType, "uploaded file is not audio")
		return
	}

	transcript, err := h.collaborators.Transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		h.collaboratorError(w, r, "transcription", err, msgTranscribeFailed)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// loadClaim fetches the {id} claim from the caller's session, writing the
// error response itself when it cannot.
func (h *Handler) loadClaim(w http.ResponseWriter, r *http.Request) (*domain.ClaimRecord, bool) {
	ctx := r.Context()
	sessionID := GetSessionID(ctx)
	claimID := chi.URLParam(r, "id")

	claim, err := h.store.GetClaim(ctx, sessionID, claimID)
	switch {
	case errors.Is(err, domain.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, msgClaimNotFound)
		return nil, false
	case err != nil:
		slog.Error("failed to load claim",
			"claim_id", claimID,
			"session_id", sessionID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgStoredClaimBroken)
		return nil, false
	}
	return claim, true
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	return r.MultipartForm, true
}

func (h *Handler) collaboratorError(w http.ResponseWriter, r *http.Request, name string, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNoImages), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		writeError(w, http.StatusServiceUnavailable, msgAIUnavailable)
	default:
		slog.Error("collaborator call failed",
			"collaborator", name,
			"session_id", GetSessionID(r.Context()),
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, msg)
	}
}

// readMedia reads an uploaded file and sniffs its type from the content.
func readMedia(fh *multipart.FileHeader) (domain.Media, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Media{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Media{}, err
	}
	mime := mimetype.Detect(data)
	return domain.Media{
		Name:     fh.Filename,
		MimeType: mime.String(),
		Data:     data,
	}, nil
}

// isAudio accepts audio types and the WebM container browsers record into.
func isAudio(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.HasPrefix(base, "audio/") || base == "video/webm"
}

func validHistory(history []domain.ChatMessage) bool {
	for _, m := range history {
		if m.Role != domain.RoleUser && m.Role != domain.RoleModel {
			return false
		}
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
