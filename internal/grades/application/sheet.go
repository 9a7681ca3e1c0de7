package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	sharedApplication "github.com/felixgeelhaar/schooldesk/internal/shared/application"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
)

// ErrCellBusy is returned when the grade cell already has a save in flight.
var ErrCellBusy = fmt.Errorf("grade cell busy: %w", sharedApplication.ErrBusy)

// Gateway is the grade backend.
type Gateway interface {
	List(ctx context.Context, f domain.Filter) ([]domain.Grade, error)
	Create(ctx context.Context, grade domain.Grade) (domain.Grade, error)
	UpdateScore(ctx context.Context, grade domain.Grade) (domain.Grade, error)
}

// SetScoreCommand enters a raw score for one cell.
type SetScoreCommand struct {
	Key domain.Key
	Raw string
}

// CommandName implements sharedApplication.Command.
func (SetScoreCommand) CommandName() string { return "grades.set_score" }

// Sheet is inline grade entry for one class and term. A score is checked
// locally, shown at once, then saved; a refused save restores the
// previous value.
type Sheet struct {
	gateway  Gateway
	maxScore float64
	logger   *slog.Logger
	metrics  observability.Metrics
	cells    *sharedApplication.Cells[domain.Key]

	mu     sync.Mutex
	filter domain.Filter
	grades map[domain.Key]domain.Grade
}

var _ sharedApplication.CommandHandler[SetScoreCommand] = (*Sheet)(nil)

// NewSheet creates a grade sheet accepting scores in [0, maxScore].
func NewSheet(gateway Gateway, maxScore float64, logger *slog.Logger, metrics observability.Metrics) *Sheet {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Sheet{
		gateway:  gateway,
		maxScore: maxScore,
		logger:   logger,
		metrics:  metrics,
		cells:    sharedApplication.NewCells[domain.Key](),
		grades:   make(map[domain.Key]domain.Grade),
	}
}

// Load fetches the existing grades for f.
func (s *Sheet) Load(ctx context.Context, f domain.Filter) error {
	grades, err := s.gateway.List(ctx, f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.grades = make(map[domain.Key]domain.Grade, len(grades))
	for _, g := range grades {
		s.grades[g.Key()] = g
	}
	return nil
}

// Grade returns the grade of a cell.
func (s *Sheet) Grade(key domain.Key) (domain.Grade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grades[key]
	return g, ok
}

// Grades returns every grade ordered by subject then student.
func (s *Sheet) Grades() []domain.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Grade, 0, len(s.grades))
	for _, g := range s.grades {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Student < out[j].Student
	})
	return out
}

// Handle runs a SetScoreCommand.
func (s *Sheet) Handle(ctx context.Context, cmd SetScoreCommand) error {
	_, err := s.SetScore(ctx, cmd.Key, cmd.Raw)
	return err
}

// SetScore validates raw and saves it. Invalid input returns a
// *domain.ValidationError without any request. A new cell is created,
// an existing one patched.
func (s *Sheet) SetScore(ctx context.Context, key domain.Key, raw string) (domain.Grade, error) {
	score, err := domain.ParseScore(raw, s.maxScore)
	if err != nil {
		return domain.Grade{}, err
	}

	var (
		previous domain.Grade
		existed  bool
		pending  domain.Grade
		saved    domain.Grade
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			previous, existed = s.grades[key]
			pending = previous
			if !existed {
				pending = domain.Grade{Student: key.StudentID, Subject: key.SubjectID, Term: s.filter.Term}
			}
			pending.Score = score
			s.grades[key] = pending
		},
		Remote: func(ctx context.Context) error {
			var err error
			if pending.Saved() {
				saved, err = s.gateway.UpdateScore(ctx, pending)
			} else {
				saved, err = s.gateway.Create(ctx, pending)
			}
			return err
		},
		OnCommit: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.grades[key] = saved
		},
		OnRevert: func(error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if existed {
				s.grades[key] = previous
				return
			}
			delete(s.grades, key)
		},
	}

	tag := observability.T("operation", "grade")
	err = sharedApplication.Run(ctx, s.cells, key, mutation)
	switch {
	case errors.Is(err, sharedApplication.ErrBusy):
		s.metrics.Counter(observability.MetricOptimisticBusy, 1, tag)
		return domain.Grade{}, ErrCellBusy
	case err != nil:
		s.metrics.Counter(observability.MetricOptimisticRolledBack, 1, tag)
		s.logger.Debug("grade save rolled back", "cell", key.String(), "error", err)
		return domain.Grade{}, err
	}
	s.metrics.Counter(observability.MetricOptimisticApplied, 1, tag)
	return saved, nil
}
