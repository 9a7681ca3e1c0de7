package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
)

const gradesPath = "/academics/grades/"

func filterQuery(f domain.Filter) string {
	q := url.Values{}
	if f.ClassID != "" {
		q.Set("school_class", f.ClassID)
	}
	if f.SubjectID > 0 {
		q.Set("subject", fmt.Sprint(f.SubjectID))
	}
	if f.Term != "" {
		q.Set("term", f.Term)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Gateway talks to the grade endpoints.
type Gateway struct {
	client *api.Client
	logger *slog.Logger
}

// NewGateway creates a grade gateway.
func NewGateway(client *api.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// List returns the grades matching f.
func (g *Gateway) List(ctx context.Context, f domain.Filter) ([]domain.Grade, error) {
	raw, err := g.client.Get(ctx, gradesPath+filterQuery(f))
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return api.DecodeList[domain.Grade](raw)
}

// Create records a new grade.
func (g *Gateway) Create(ctx context.Context, grade domain.Grade) (domain.Grade, error) {
	grade.ID = 0
	raw, err := g.client.Post(ctx, gradesPath, grade)
	if err != nil {
		return domain.Grade{}, fmt.Errorf("create grade: %w", err)
	}
	return merge(raw, grade)
}

// UpdateScore changes the score of an existing grade.
func (g *Gateway) UpdateScore(ctx context.Context, grade domain.Grade) (domain.Grade, error) {
	path := fmt.Sprintf("%s%d/", gradesPath, grade.ID)
	raw, err := g.client.Patch(ctx, path, map[string]float64{"score": grade.Score})
	if err != nil {
		return domain.Grade{}, fmt.Errorf("update grade %d: %w", grade.ID, err)
	}
	return merge(raw, grade)
}

func merge(raw []byte, sent domain.Grade) (domain.Grade, error) {
	got, err := api.Decode[domain.Grade](raw)
	if err != nil {
		return domain.Grade{}, fmt.Errorf("decode grade: %w", err)
	}
	if got.ID == 0 {
		got.ID = sent.ID
	}
	if got.Student == 0 {
		got.Student = sent.Student
	}
	if got.Subject == 0 {
		got.Subject = sent.Subject
	}
	if got.Term == "" {
		got.Term = sent.Term
	}
	if got.Score == 0 {
		got.Score = sent.Score
	}
	return got, nil
}
