package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/config"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/repository"
	"github.com/praxisops/crisis-exercise-backend/internal/service/publishing"
)

type apiFixture struct {
	publisher  *MockPublishService
	published  *MockPublishedReader
	cancelled  *MockCancelledReader
	escalation *MockEscalationReader
	cache      *MockReadCache
	server     *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newFixture(t, false)
}

// newCachedAPIFixture wires a mock read cache; newAPIFixture leaves the
// cache nil so storage-path tests stay cache-free.
func newCachedAPIFixture(t *testing.T) *apiFixture {
	return newFixture(t, true)
}

func newFixture(t *testing.T, cached bool) *apiFixture {
	f := &apiFixture{
		publisher:  new(MockPublishService),
		published:  new(MockPublishedReader),
		cancelled:  new(MockCancelledReader),
		escalation: new(MockEscalationReader),
	}
	var readCache ReadCache
	if cached {
		f.cache = new(MockReadCache)
		readCache = f.cache
	}
	logger := zaptest.NewLogger(t)
	handler := NewHandler(f.publisher, f.published, f.cancelled, f.escalation, readCache, nil, logger)
	hub := events.NewHub(logger, events.DefaultHubConfig())
	srv := NewServer(&config.ServerConfig{
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
	}, handler, hub, nil, logger)

	f.server = httptest.NewServer(srv.routes())
	t.Cleanup(f.server.Close)
	t.Cleanup(hub.Shutdown)
	return f
}

func (f *apiFixture) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) responseEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var env responseEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func publishedEvent(exerciseID uuid.UUID, scope inject.ResolvedScope) *inject.PublishedEvent {
	return &inject.PublishedEvent{
		ID:                uuid.New(),
		ExerciseID:        exerciseID,
		EventDefinitionID: uuid.New(),
		PublishedAt:       time.Now().UTC(),
		ResolvedScope:     scope,
	}
}

func TestHandlePublish(t *testing.T) {
	f := newAPIFixture(t)
	exerciseID := uuid.New()
	definitionID := uuid.New()

	t.Run("created on success", func(t *testing.T) {
		event := publishedEvent(exerciseID, inject.ResolvedScope{Kind: inject.ScopeUniversal})
		f.publisher.On("Publish", mock.Anything, exerciseID, definitionID).
			Return(event, nil).Once()

		resp := f.postJSON(t, fmt.Sprintf("/api/v1/exercises/%s/injects/%s/publish", exerciseID, definitionID), nil)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		assert.True(t, env.Success)
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		f.publisher.On("Publish", mock.Anything, exerciseID, definitionID).
			Return(nil, domainerrors.NewAlreadyPublishedError(exerciseID.String(), definitionID.String())).Once()

		resp := f.postJSON(t, fmt.Sprintf("/api/v1/exercises/%s/injects/%s/publish", exerciseID, definitionID), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ALREADY_PUBLISHED", env.Error.Code)
	})

	t.Run("bad definition id rejected before the service", func(t *testing.T) {
		resp := f.postJSON(t, fmt.Sprintf("/api/v1/exercises/%s/injects/not-a-uuid/publish", exerciseID), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandlePublishImmediate(t *testing.T) {
	f := newAPIFixture(t)
	exerciseID := uuid.New()

	t.Run("valid request reaches the service", func(t *testing.T) {
		event := publishedEvent(exerciseID, inject.ResolvedScope{Kind: inject.ScopeUniversal})
		f.publisher.On("PublishImmediate", mock.Anything, exerciseID,
			mock.MatchedBy(func(in publishing.ImmediateInput) bool {
				return in.Title == "power grid failure" && in.Severity == values.SeverityCritical &&
					in.SideEffect == inject.SideEffectIncident
			})).Return(event, nil).Once()

		resp := f.postJSON(t, "/api/v1/exercises/"+exerciseID.String()+"/injects", map[string]interface{}{
			"title":       "power grid failure",
			"body":        "Substation 4 is offline.",
			"severity":    "critical",
			"scope":       map[string]interface{}{"kind": "universal"},
			"side_effect": "incident",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
		f.publisher.AssertExpectations(t)
	})

	t.Run("missing title fails validation", func(t *testing.T) {
		resp := f.postJSON(t, "/api/v1/exercises/"+exerciseID.String()+"/injects", map[string]interface{}{
			"severity": "high",
			"scope":    map[string]interface{}{"kind": "universal"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	})

	t.Run("role scope with no roles rejected", func(t *testing.T) {
		resp := f.postJSON(t, "/api/v1/exercises/"+exerciseID.String()+"/injects", map[string]interface{}{
			"title":    "ops brief",
			"severity": "low",
			"scope":    map[string]interface{}{"kind": "role_restricted"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env := decodeEnvelope(t, resp)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_SCOPE", env.Error.Code)
	})
}

func TestHandleCancel(t *testing.T) {
	f := newAPIFixture(t)
	exerciseID := uuid.New()
	definitionID := uuid.New()

	t.Run("reason is required", func(t *testing.T) {
		resp := f.postJSON(t, fmt.Sprintf("/api/v1/exercises/%s/injects/%s/cancel", exerciseID, definitionID),
			map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("cancellation recorded", func(t *testing.T) {
		cancelled, err := inject.NewCancelledEvent(exerciseID, definitionID, "superseded", time.Now())
		require.NoError(t, err)
		f.publisher.On("Cancel", mock.Anything, exerciseID, definitionID, "superseded").
			Return(cancelled, nil).Once()

		resp := f.postJSON(t, fmt.Sprintf("/api/v1/exercises/%s/injects/%s/cancel", exerciseID, definitionID),
			map[string]interface{}{"reason": "superseded"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleListPublished_ScopeFilter(t *testing.T) {
	f := newAPIFixture(t)
	exerciseID := uuid.New()
	userID := uuid.New()

	universal := publishedEvent(exerciseID, inject.ResolvedScope{Kind: inject.ScopeUniversal})
	opsOnly := publishedEvent(exerciseID, inject.ResolvedScope{
		Kind: inject.ScopeRoleRestricted, Roles: []values.Role{values.RoleOperations},
	})
	someoneElse := publishedEvent(exerciseID, inject.ResolvedScope{
		Kind: inject.ScopeUserRestricted, RestrictedToUser: ptr(uuid.New()),
	})
	f.published.On("ListByExercise", mock.Anything, exerciseID).
		Return([]*inject.PublishedEvent{universal, opsOnly, someoneElse}, nil)

	t.Run("liaison sees only universal", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/injects/published?user_id=%s&role=liaison&team=fire",
			f.server.URL, exerciseID, userID))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env := decodeEnvelope(t, resp)

		var got []*inject.PublishedEvent
		raw, _ := json.Marshal(env.Data)
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Len(t, got, 1)
		assert.Equal(t, universal.ID, got[0].ID)
	})

	t.Run("operations role also sees the role-restricted event", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/injects/published?user_id=%s&role=operations",
			f.server.URL, exerciseID, userID))
		require.NoError(t, err)
		env := decodeEnvelope(t, resp)

		var got []*inject.PublishedEvent
		raw, _ := json.Marshal(env.Data)
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Len(t, got, 2)
	})

	t.Run("evaluator sees everything", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/injects/published?user_id=%s&role=evaluator",
			f.server.URL, exerciseID, userID))
		require.NoError(t, err)
		env := decodeEnvelope(t, resp)

		var got []*inject.PublishedEvent
		raw, _ := json.Marshal(env.Data)
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Len(t, got, 3)
	})

	t.Run("identity is required", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/injects/published", f.server.URL, exerciseID))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleEscalationStreams(t *testing.T) {
	f := newAPIFixture(t)
	exerciseID := uuid.New()

	t.Run("latest factors", func(t *testing.T) {
		snapshot, err := escalation.NewFactorSnapshot(exerciseID, []escalation.Factor{
			{Name: "rumor spread", Description: "unverified casualty counts", Severity: values.SeverityMedium},
		}, "reasoning", time.Now().UTC())
		require.NoError(t, err)
		f.escalation.On("LatestFactorSnapshot", mock.Anything, exerciseID).Return(snapshot, nil).Once()

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/escalation/factors/latest", f.server.URL, exerciseID))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("no snapshot yet maps to 404", func(t *testing.T) {
		f.escalation.On("LatestFactorSnapshot", mock.Anything, exerciseID).
			Return(nil, repository.ErrNotFound).Once()

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/escalation/factors/latest", f.server.URL, exerciseID))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("matrix stream", func(t *testing.T) {
		f.escalation.On("ListMatrixEvaluations", mock.Anything, exerciseID).
			Return([]*escalation.MatrixEvaluation{}, nil).Once()

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/exercises/%s/escalation/matrix", f.server.URL, exerciseID))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleListPublished_ReadThroughCache(t *testing.T) {
	exerciseID := uuid.New()
	userID := uuid.New()
	universal := publishedEvent(exerciseID, inject.ResolvedScope{Kind: inject.ScopeUniversal})
	listURL := func(f *apiFixture) string {
		return fmt.Sprintf("%s/api/v1/exercises/%s/injects/published?user_id=%s&role=evaluator",
			f.server.URL, exerciseID, userID)
	}

	t.Run("hit serves without touching storage", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetPublished", mock.Anything, exerciseID).
			Return([]*inject.PublishedEvent{universal}, nil).Once()

		resp, err := http.Get(listURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env := decodeEnvelope(t, resp)

		var got []*inject.PublishedEvent
		raw, _ := json.Marshal(env.Data)
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Len(t, got, 1)
		assert.Equal(t, universal.ID, got[0].ID)
		f.published.AssertNotCalled(t, "ListByExercise", mock.Anything, exerciseID)
	})

	t.Run("miss falls back to storage and populates", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetPublished", mock.Anything, exerciseID).
			Return(nil, errors.New("key not found")).Once()
		f.published.On("ListByExercise", mock.Anything, exerciseID).
			Return([]*inject.PublishedEvent{universal}, nil).Once()
		f.cache.On("SetPublished", mock.Anything, exerciseID, []*inject.PublishedEvent{universal}).
			Return().Once()

		resp, err := http.Get(listURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		f.cache.AssertExpectations(t)
		f.published.AssertExpectations(t)
	})

	t.Run("cache fault degrades to storage", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetPublished", mock.Anything, exerciseID).
			Return(nil, errors.New("connection refused")).Once()
		f.published.On("ListByExercise", mock.Anything, exerciseID).
			Return([]*inject.PublishedEvent{universal}, nil).Once()
		f.cache.On("SetPublished", mock.Anything, exerciseID, mock.Anything).Return()

		resp, err := http.Get(listURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleLatestFactors_ReadThroughCache(t *testing.T) {
	exerciseID := uuid.New()
	snapshot, err := escalation.NewFactorSnapshot(exerciseID, []escalation.Factor{
		{Name: "media pressure", Description: "press briefing demanded", Severity: values.SeverityHigh},
	}, "reasoning", time.Now().UTC())
	require.NoError(t, err)
	latestURL := func(f *apiFixture) string {
		return fmt.Sprintf("%s/api/v1/exercises/%s/escalation/factors/latest", f.server.URL, exerciseID)
	}

	t.Run("hit serves without touching storage", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetLatestFactors", mock.Anything, exerciseID).Return(snapshot, nil).Once()

		resp, err := http.Get(latestURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		f.escalation.AssertNotCalled(t, "LatestFactorSnapshot", mock.Anything, exerciseID)
	})

	t.Run("miss falls back to storage and populates", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetLatestFactors", mock.Anything, exerciseID).
			Return(nil, errors.New("key not found")).Once()
		f.escalation.On("LatestFactorSnapshot", mock.Anything, exerciseID).Return(snapshot, nil).Once()
		f.cache.On("SetLatestFactors", mock.Anything, snapshot).Return().Once()

		resp, err := http.Get(latestURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		f.cache.AssertExpectations(t)
	})

	t.Run("miss with no snapshot still maps to 404", func(t *testing.T) {
		f := newCachedAPIFixture(t)
		f.cache.On("GetLatestFactors", mock.Anything, exerciseID).
			Return(nil, errors.New("key not found")).Once()
		f.escalation.On("LatestFactorSnapshot", mock.Anything, exerciseID).
			Return(nil, repository.ErrNotFound).Once()

		resp, err := http.Get(latestURL(f))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func ptr[T any](v T) *T { return &v }
