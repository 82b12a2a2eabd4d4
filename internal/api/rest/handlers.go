package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/repository"
	"github.com/praxisops/crisis-exercise-backend/internal/metrics"
	"github.com/praxisops/crisis-exercise-backend/internal/service/publishing"
)

const maxBodySize = 1 << 20

// PublishService is the write surface the API exposes.
type PublishService interface {
	Publish(ctx context.Context, exerciseID, definitionID uuid.UUID) (*inject.PublishedEvent, error)
	PublishImmediate(ctx context.Context, exerciseID uuid.UUID, input publishing.ImmediateInput) (*inject.PublishedEvent, error)
	Cancel(ctx context.Context, exerciseID, definitionID uuid.UUID, reason string) (*inject.CancelledEvent, error)
}

// PublishedReader reads the published stream for an exercise
type PublishedReader interface {
	ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error)
}

// CancelledReader reads the cancelled stream for an exercise
type CancelledReader interface {
	ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.CancelledEvent, error)
}

// EscalationReader reads the three append-only snapshot streams
type EscalationReader interface {
	ListFactorSnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.FactorSnapshot, error)
	ListPathwaySnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.PathwaySnapshot, error)
	ListMatrixEvaluations(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.MatrixEvaluation, error)
	LatestFactorSnapshot(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error)
}

// ReadCache fronts the two hot read paths. A nil cache disables caching;
// handlers then read storage directly.
type ReadCache interface {
	GetPublished(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error)
	SetPublished(ctx context.Context, exerciseID uuid.UUID, events []*inject.PublishedEvent)
	GetLatestFactors(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error)
	SetLatestFactors(ctx context.Context, snapshot *escalation.FactorSnapshot)
}

// Handler serves the engine's REST surface.
type Handler struct {
	publisher  PublishService
	published  PublishedReader
	cancelled  CancelledReader
	escalation EscalationReader
	cache      ReadCache
	validator  *validator.Validate
	registry   *metrics.Registry
	logger     *zap.Logger
}

func NewHandler(
	publisher PublishService,
	published PublishedReader,
	cancelled CancelledReader,
	escalationReader EscalationReader,
	cache ReadCache,
	registry *metrics.Registry,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		publisher:  publisher,
		published:  published,
		cancelled:  cancelled,
		escalation: escalationReader,
		cache:      cache,
		validator:  validator.New(),
		registry:   registry,
		logger:     logger,
	}
}

// handlePublish fires a definition directly, outside the poll loop.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	exerciseID, definitionID, ok := h.pathPair(w, r)
	if !ok {
		return
	}

	event, err := h.publisher.Publish(r.Context(), exerciseID, definitionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, event)
}

// handlePublishImmediate creates a dynamic definition and publishes it
// synchronously in the same call.
func (h *Handler) handlePublishImmediate(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req publishImmediateRequest
	if !h.decode(w, r, &req) {
		return
	}

	severity, err := values.NewSeverity(req.Severity)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_SEVERITY", err.Error()))
		return
	}
	scope, err := req.Scope.toDomain()
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_SCOPE", err.Error()))
		return
	}
	sideEffect := inject.SideEffectNone
	if req.SideEffect != "" {
		if sideEffect, err = inject.ParseSideEffectKind(req.SideEffect); err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_SIDE_EFFECT", err.Error()))
			return
		}
	}

	event, err := h.publisher.PublishImmediate(r.Context(), exerciseID, publishing.ImmediateInput{
		Title:            req.Title,
		Body:             req.Body,
		Severity:         severity,
		Scope:            scope,
		RestrictedToUser: req.RestrictedToUser,
		SideEffect:       sideEffect,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, event)
}

// handleCancel records the alternative terminal state for a definition.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	exerciseID, definitionID, ok := h.pathPair(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	cancelled, err := h.publisher.Cancel(r.Context(), exerciseID, definitionID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cancelled)
}

// handleListPublished returns the published events the caller's identity
// may see. The filter is the same Covers predicate the WebSocket hub uses.
func (h *Handler) handleListPublished(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	caller, err := identityFromRequest(r)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_IDENTITY", err.Error()))
		return
	}

	events, hit := h.cachedPublished(r.Context(), exerciseID)
	if !hit {
		var err error
		events, err = h.published.ListByExercise(r.Context(), exerciseID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if h.cache != nil {
			h.cache.SetPublished(r.Context(), exerciseID, events)
		}
	}

	visible := make([]*inject.PublishedEvent, 0, len(events))
	for _, event := range events {
		if event.ResolvedScope.Covers(caller.UserID, caller.Role, caller.Team) {
			visible = append(visible, event)
		}
	}
	h.writeJSON(w, http.StatusOK, visible)
}

func (h *Handler) handleListCancelled(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	cancelled, err := h.cancelled.ListByExercise(r.Context(), exerciseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cancelled == nil {
		cancelled = []*inject.CancelledEvent{}
	}
	h.writeJSON(w, http.StatusOK, cancelled)
}

func (h *Handler) handleListFactors(w http.ResponseWriter, r *http.Request) {
	h.listSnapshots(w, r, func(ctx context.Context, exerciseID uuid.UUID) (interface{}, error) {
		return h.escalation.ListFactorSnapshots(ctx, exerciseID)
	})
}

func (h *Handler) handleLatestFactors(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if h.cache != nil {
		if snapshot, err := h.cache.GetLatestFactors(r.Context(), exerciseID); err == nil {
			h.writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	snapshot, err := h.escalation.LatestFactorSnapshot(r.Context(), exerciseID)
	if err != nil {
		if repository.IsNotFound(err) {
			h.writeError(w, r, domainerrors.NewNotFoundError("factor snapshot"))
			return
		}
		h.writeError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.SetLatestFactors(r.Context(), snapshot)
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleListPathways(w http.ResponseWriter, r *http.Request) {
	h.listSnapshots(w, r, func(ctx context.Context, exerciseID uuid.UUID) (interface{}, error) {
		return h.escalation.ListPathwaySnapshots(ctx, exerciseID)
	})
}

func (h *Handler) handleListMatrix(w http.ResponseWriter, r *http.Request) {
	h.listSnapshots(w, r, func(ctx context.Context, exerciseID uuid.UUID) (interface{}, error) {
		return h.escalation.ListMatrixEvaluations(ctx, exerciseID)
	})
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID) (interface{}, error)) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	snapshots, err := list(r.Context(), exerciseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

// cachedPublished returns the cached publish history and whether it was a
// hit. Cache faults read as misses; the repository stays authoritative.
func (h *Handler) cachedPublished(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, bool) {
	if h.cache == nil {
		return nil, false
	}
	events, err := h.cache.GetPublished(ctx, exerciseID)
	if err != nil {
		return nil, false
	}
	return events, true
}

// Helpers

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_ID",
			name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pathPair(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	exerciseID, ok := h.pathID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	definitionID, ok := h.pathID(w, r, "definitionID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return exerciseID, definitionID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_BODY", err.Error()))
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("VALIDATION_FAILED", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(responseEnvelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainerrors.GetStatusCode(err)
	resp := &errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"}

	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(responseEnvelope{
		Success:   false,
		Error:     resp,
		Timestamp: time.Now().UTC(),
	})
}
