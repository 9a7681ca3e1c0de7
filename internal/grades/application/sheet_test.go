package application

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockGateway is a mock implementation of Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) List(ctx context.Context, f domain.Filter) ([]domain.Grade, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Grade), args.Error(1)
}

func (m *mockGateway) Create(ctx context.Context, grade domain.Grade) (domain.Grade, error) {
	args := m.Called(ctx, grade)
	return args.Get(0).(domain.Grade), args.Error(1)
}

func (m *mockGateway) UpdateScore(ctx context.Context, grade domain.Grade) (domain.Grade, error) {
	args := m.Called(ctx, grade)
	return args.Get(0).(domain.Grade), args.Error(1)
}

var filter = domain.Filter{ClassID: "4", Term: "T1"}

func loadedSheet(t *testing.T, existing ...domain.Grade) (*Sheet, *mockGateway) {
	t.Helper()
	gw := new(mockGateway)
	gw.On("List", mock.Anything, filter).Return(existing, nil)
	sheet := NewSheet(gw, 20, nil, nil)
	require.NoError(t, sheet.Load(context.Background(), filter))
	return sheet, gw
}

func TestSheet_SetScore(t *testing.T) {
	key := domain.Key{StudentID: 2, SubjectID: 3}
	ctx := context.Background()

	t.Run("invalid input never reaches the server", func(t *testing.T) {
		sheet, gw := loadedSheet(t)

		_, err := sheet.SetScore(ctx, key, "vingt")

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		_, ok := sheet.Grade(key)
		assert.False(t, ok)
	})

	t.Run("new cell is created", func(t *testing.T) {
		sheet, gw := loadedSheet(t)
		want := domain.Grade{Student: 2, Subject: 3, Term: "T1", Score: 13.5}
		gw.On("Create", mock.Anything, want).Return(domain.Grade{ID: 8, Student: 2, Subject: 3, Term: "T1", Score: 13.5}, nil)

		saved, err := sheet.SetScore(ctx, key, "13,5")
		require.NoError(t, err)

		assert.Equal(t, int64(8), saved.ID)
		got, _ := sheet.Grade(key)
		assert.Equal(t, int64(8), got.ID)
	})

	t.Run("existing cell is patched", func(t *testing.T) {
		sheet, gw := loadedSheet(t, domain.Grade{ID: 5, Student: 2, Subject: 3, Score: 9})
		gw.On("UpdateScore", mock.Anything, domain.Grade{ID: 5, Student: 2, Subject: 3, Score: 17}).
			Return(domain.Grade{ID: 5, Student: 2, Subject: 3, Score: 17}, nil)

		_, err := sheet.SetScore(ctx, key, "17")
		require.NoError(t, err)

		gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		got, _ := sheet.Grade(key)
		assert.Equal(t, 17.0, got.Score)
	})

	t.Run("refused save restores the previous score", func(t *testing.T) {
		sheet, gw := loadedSheet(t, domain.Grade{ID: 5, Student: 2, Subject: 3, Score: 9})
		gw.On("UpdateScore", mock.Anything, mock.Anything).Return(domain.Grade{}, errors.New("locked term"))

		_, err := sheet.SetScore(ctx, key, "12")
		require.Error(t, err)

		got, _ := sheet.Grade(key)
		assert.Equal(t, 9.0, got.Score)
	})

	t.Run("refused create empties the cell", func(t *testing.T) {
		sheet, gw := loadedSheet(t)
		gw.On("Create", mock.Anything, mock.Anything).Return(domain.Grade{}, errors.New("boom"))

		cell := domain.Key{StudentID: 1, SubjectID: 1}
		err := sheet.Handle(ctx, SetScoreCommand{Key: cell, Raw: "10"})
		require.Error(t, err)

		_, ok := sheet.Grade(cell)
		assert.False(t, ok)
		assert.Empty(t, sheet.Grades())
	})

	t.Run("second save while in flight is dropped", func(t *testing.T) {
		sheet, gw := loadedSheet(t)
		started := make(chan struct{})
		release := make(chan struct{})
		gw.On("Create", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(domain.Grade{ID: 8, Student: 2, Subject: 3, Score: 10}, nil).Once()

		done := make(chan error)
		go func() {
			_, err := sheet.SetScore(ctx, key, "10")
			done <- err
		}()
		<-started

		got, _ := sheet.Grade(key)
		assert.Equal(t, 10.0, got.Score, "score shows before the save completes")
		_, err := sheet.SetScore(ctx, key, "11")
		assert.ErrorIs(t, err, ErrCellBusy)

		close(release)
		require.NoError(t, <-done)
		gw.AssertNumberOfCalls(t, "Create", 1)
	})
}

func TestSetScoreCommand_Name(t *testing.T) {
	assert.Equal(t, "grades.set_score", SetScoreCommand{}.CommandName())
}

func TestListGradesHandler(t *testing.T) {
	sheet, gw := loadedSheet(t)
	other := domain.Filter{ClassID: "4", SubjectID: 3, Term: "T1"}
	gw.On("List", mock.Anything, other).Return([]domain.Grade{
		{ID: 2, Student: 9, Subject: 3, Score: 11},
		{ID: 1, Student: 1, Subject: 3, Score: 15},
	}, nil)

	grades, err := NewListGradesHandler(sheet).Handle(context.Background(), ListGradesQuery{Filter: other})
	require.NoError(t, err)

	require.Len(t, grades, 2)
	assert.Equal(t, int64(1), grades[0].Student, "ordered by student within a subject")
	assert.Equal(t, "grades.list", ListGradesQuery{}.QueryName())
}
