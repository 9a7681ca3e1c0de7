package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockMutation is a mock implementation of Mutation.
type mockMutation struct {
	mock.Mock
}

func (m *mockMutation) ApplyLocally() {
	m.Called()
}

func (m *mockMutation) ApplyRemotely(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockMutation) Commit() {
	m.Called()
}

func (m *mockMutation) Rollback(err error) {
	m.Called(err)
}

func TestRun(t *testing.T) {
	t.Run("commits after remote success", func(t *testing.T) {
		cells := NewCells[string]()
		m := new(mockMutation)
		ctx := context.Background()

		m.On("ApplyLocally").Return()
		m.On("ApplyRemotely", ctx).Return(nil)
		m.On("Commit").Return()

		err := Run(ctx, cells, "s1/e7", m)

		require.NoError(t, err)
		m.AssertExpectations(t)
		m.AssertNotCalled(t, "Rollback", mock.Anything)
		assert.False(t, cells.Busy("s1/e7"), "busy flag must be cleared")
	})

	t.Run("rolls back on remote error", func(t *testing.T) {
		cells := NewCells[string]()
		m := new(mockMutation)
		ctx := context.Background()
		remoteErr := errors.New("server down")

		m.On("ApplyLocally").Return()
		m.On("ApplyRemotely", ctx).Return(remoteErr)
		m.On("Rollback", remoteErr).Return()

		err := Run(ctx, cells, "s1/e7", m)

		assert.Equal(t, remoteErr, err)
		m.AssertExpectations(t)
		m.AssertNotCalled(t, "Commit")
		assert.False(t, cells.Busy("s1/e7"))
	})

	t.Run("busy cell is a no-op", func(t *testing.T) {
		cells := NewCells[string]()
		require.True(t, cells.Acquire("s1/e7"))
		m := new(mockMutation)

		err := Run(context.Background(), cells, "s1/e7", m)

		assert.ErrorIs(t, err, ErrBusy)
		m.AssertNotCalled(t, "ApplyLocally")
		m.AssertNotCalled(t, "ApplyRemotely", mock.Anything)
		assert.True(t, cells.Busy("s1/e7"), "foreign busy flag must survive")
	})
}

func TestRun_ConcurrentTogglesIssueOneRequest(t *testing.T) {
	cells := NewCells[string]()
	started := make(chan struct{})
	release := make(chan struct{})
	var remoteCalls int
	var mu sync.Mutex

	first := MutationFuncs{
		Remote: func(ctx context.Context) error {
			mu.Lock()
			remoteCalls++
			mu.Unlock()
			close(started)
			<-release
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), cells, "cell", first) }()
	<-started

	second := MutationFuncs{
		Remote: func(ctx context.Context) error {
			mu.Lock()
			remoteCalls++
			mu.Unlock()
			return nil
		},
	}
	err := Run(context.Background(), cells, "cell", second)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, remoteCalls)
	assert.Equal(t, 0, cells.Len())
}

func TestCells_AcquireAll(t *testing.T) {
	cells := NewCells[int]()
	require.True(t, cells.Acquire(2))

	acquired := cells.AcquireAll([]int{1, 2, 3})

	assert.Equal(t, []int{1, 3}, acquired)
	assert.Equal(t, 3, cells.Len())
	for _, k := range []int{1, 2, 3} {
		cells.Release(k)
	}
	assert.Equal(t, 0, cells.Len())
}

func TestMutationFuncs_NilFuncsAreSkipped(t *testing.T) {
	var m MutationFuncs
	assert.NotPanics(t, func() {
		m.ApplyLocally()
		assert.NoError(t, m.ApplyRemotely(context.Background()))
		m.Commit()
		m.Rollback(errors.New("x"))
	})
}

func TestRunHeld_ReleasesTheCallersCell(t *testing.T) {
	cells := NewCells[string]()
	require.True(t, cells.Acquire("s1/e7"))
	m := new(mockMutation)
	ctx := context.Background()

	m.On("ApplyLocally").Return()
	m.On("ApplyRemotely", ctx).Return(nil)
	m.On("Commit").Return()

	err := RunHeld(ctx, cells, "s1/e7", m)

	require.NoError(t, err)
	m.AssertExpectations(t)
	assert.False(t, cells.Busy("s1/e7"))
}
