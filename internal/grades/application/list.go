package application

import (
	"context"

	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	sharedApplication "github.com/felixgeelhaar/schooldesk/internal/shared/application"
)

// ListGradesQuery loads the grades matching Filter into the sheet.
type ListGradesQuery struct {
	Filter domain.Filter
}

// QueryName implements sharedApplication.Query.
func (ListGradesQuery) QueryName() string { return "grades.list" }

// ListGradesHandler answers ListGradesQuery from a sheet.
type ListGradesHandler struct {
	sheet *Sheet
}

var _ sharedApplication.QueryHandler[ListGradesQuery, []domain.Grade] = (*ListGradesHandler)(nil)

// NewListGradesHandler creates a handler that loads into sheet.
func NewListGradesHandler(sheet *Sheet) *ListGradesHandler {
	return &ListGradesHandler{sheet: sheet}
}

// Handle reloads the sheet and returns its grades.
func (h *ListGradesHandler) Handle(ctx context.Context, q ListGradesQuery) ([]domain.Grade, error) {
	if err := h.sheet.Load(ctx, q.Filter); err != nil {
		return nil, err
	}
	return h.sheet.Grades(), nil
}
