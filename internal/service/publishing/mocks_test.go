package publishing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
)

type MockExerciseReader struct {
	mock.Mock
}

func (m *MockExerciseReader) GetByID(ctx context.Context, id uuid.UUID) (*exercise.Exercise, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exercise.Exercise), args.Error(1)
}

type MockDefinitionStore struct {
	mock.Mock
}

func (m *MockDefinitionStore) Create(ctx context.Context, def *inject.EventDefinition) error {
	args := m.Called(ctx, def)
	return args.Error(0)
}

func (m *MockDefinitionStore) GetByID(ctx context.Context, id uuid.UUID) (*inject.EventDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inject.EventDefinition), args.Error(1)
}

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) CreateWithSideEffects(ctx context.Context, event *inject.PublishedEvent, effects []*inject.SideEffectRecord) error {
	args := m.Called(ctx, event, effects)
	return args.Error(0)
}

type MockCancellationStore struct {
	mock.Mock
}

func (m *MockCancellationStore) Create(ctx context.Context, cancelled *inject.CancelledEvent) error {
	args := m.Called(ctx, cancelled)
	return args.Error(0)
}

type MockPublishedCache struct {
	mock.Mock
}

func (m *MockPublishedCache) InvalidatePublished(ctx context.Context, exerciseID uuid.UUID) {
	m.Called(ctx, exerciseID)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(notification *events.InjectNotification) error {
	args := m.Called(notification)
	return args.Error(0)
}
