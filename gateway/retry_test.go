package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway for testing the retry decorator.
type MockGateway struct{ mock.Mock }

func (m *MockGateway) Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*Reply, error) {
	args := m.Called(ctx, messages, tools)
	if r, ok := args.Get(0).(*Reply); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}

func fastRetry(o *RetryOptions) {
	o.MaxRetries = 2
	o.InitialInterval = time.Millisecond
	o.MaxInterval = 2 * time.Millisecond
}

func TestRetrying_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &MockGateway{}
	inner.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &RetryableError{Err: errors.New("rate limited")}).Twice()
	inner.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&Reply{Text: "recovered"}, nil).Once()

	gw := NewRetrying(inner, fastRetry)

	reply, err := gw.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Text)
	inner.AssertNumberOfCalls(t, "Send", 3)
}

func TestRetrying_ExhaustedBudgetBecomesFatal(t *testing.T) {
	inner := &MockGateway{}
	inner.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &RetryableError{Err: errors.New("still rate limited")})

	gw := NewRetrying(inner, fastRetry)

	_, err := gw.Send(context.Background(), nil, nil)
	require.Error(t, err)

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	// Initial attempt + MaxRetries.
	inner.AssertNumberOfCalls(t, "Send", 3)
}

func TestRetrying_FatalPassesThroughImmediately(t *testing.T) {
	inner := &MockGateway{}
	inner.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &FatalError{Err: errors.New("bad credentials")})

	gw := NewRetrying(inner, fastRetry)

	_, err := gw.Send(context.Background(), nil, nil)
	require.Error(t, err)

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	inner.AssertNumberOfCalls(t, "Send", 1)
}

func TestRetrying_ContextExceededPassesThrough(t *testing.T) {
	inner := &MockGateway{}
	inner.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &ContextExceededError{Err: errors.New("prompt too long")})

	gw := NewRetrying(inner, fastRetry)

	_, err := gw.Send(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, IsContextExceeded(err))
	inner.AssertNumberOfCalls(t, "Send", 1)
}

func TestScripted_ReplaysAndRecords(t *testing.T) {
	gw := NewScripted().
		AddText("hello").
		AddToolCalls(core.ToolCall{ID: "c1", Name: "ping"}).
		AddError(&RetryableError{Err: errors.New("blip")})

	reply, err := gw.Send(context.Background(), []core.Message{core.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.True(t, reply.IsFinal())
	assert.Equal(t, "hello", reply.Text)

	reply, err = gw.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, reply.IsFinal())

	_, err = gw.Send(context.Background(), nil, nil)
	assert.True(t, IsRetryable(err))

	// Drained scripts fail loudly.
	_, err = gw.Send(context.Background(), nil, nil)
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))

	assert.Equal(t, 4, gw.Calls())
	require.Len(t, gw.Requests(), 4)
	assert.Equal(t, "hi", gw.Requests()[0].Messages[0].Text())
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := &RetryableError{Err: errors.New("inner")}
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsContextExceeded(wrapped))
	assert.ErrorContains(t, wrapped, "inner")

	assert.False(t, IsRetryable(errors.New("plain")))
}
