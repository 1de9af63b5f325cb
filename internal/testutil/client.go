package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
)

// MockClient is a testify mock of collab.Client.
type MockClient struct {
	mock.Mock
}

var _ collab.Client = (*MockClient)(nil)

func (m *MockClient) FetchStoryFeed(ctx context.Context, filter collab.StoryFilter) (collab.Page, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(collab.Page), args.Error(1)
}

func (m *MockClient) FetchReelFeed(ctx context.Context, cursor string) (collab.Page, error) {
	args := m.Called(ctx, cursor)
	return args.Get(0).(collab.Page), args.Error(1)
}

func (m *MockClient) RecordView(ctx context.Context, v collab.ViewRecord) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockClient) SubmitInteractiveResponse(ctx context.Context, widgetID, value string) (collab.SubmitResult, error) {
	args := m.Called(ctx, widgetID, value)
	return args.Get(0).(collab.SubmitResult), args.Error(1)
}

func (m *MockClient) ToggleReaction(ctx context.Context, itemID, emoji string) error {
	args := m.Called(ctx, itemID, emoji)
	return args.Error(0)
}
