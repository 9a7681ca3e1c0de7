package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Key addresses one grade cell: a student in a subject.
type Key struct {
	StudentID int64
	SubjectID int64
}

func (k Key) String() string {
	return fmt.Sprintf("student %d / subject %d", k.StudentID, k.SubjectID)
}

// Filter narrows a grade listing. Zero fields are ignored.
type Filter struct {
	ClassID   string
	SubjectID int64
	Term      string
}

// Grade is a student's score in a subject for a term.
type Grade struct {
	ID      int64   `json:"id,omitempty"`
	Student int64   `json:"student"`
	Subject int64   `json:"subject"`
	Term    string  `json:"term,omitempty"`
	Score   float64 `json:"score"`
}

// Key returns the cell of g.
func (g Grade) Key() Key {
	return Key{StudentID: g.Student, SubjectID: g.Subject}
}

// Saved reports whether the server has assigned an id.
func (g Grade) Saved() bool {
	return g.ID > 0
}

// ValidationError is a local input error. It never reaches the server.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var scoreValidator = validator.New()

// ParseScore reads a score typed by the user. A comma is accepted as the
// decimal separator. The score must lie in [0, max].
func ParseScore(raw string, max float64) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if err := scoreValidator.Var(normalized, "required,numeric"); err != nil {
		return 0, &ValidationError{Field: "score", Value: raw, Message: "la note doit être un nombre"}
	}
	score, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &ValidationError{Field: "score", Value: raw, Message: "la note doit être un nombre"}
	}
	bounds := "gte=0,lte=" + strconv.FormatFloat(max, 'f', -1, 64)
	if err := scoreValidator.Var(score, bounds); err != nil {
		return 0, &ValidationError{
			Field:   "score",
			Value:   raw,
			Message: fmt.Sprintf("la note doit être comprise entre 0 et %s", strconv.FormatFloat(max, 'f', -1, 64)),
		}
	}
	return score, nil
}
