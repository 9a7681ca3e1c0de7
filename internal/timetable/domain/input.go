package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EntryInput is the payload for creating or replacing a schedule entry
// outside the staged batch flow.
type EntryInput struct {
	SchoolClass int64   `json:"school_class" validate:"required,gt=0"`
	Subject     int64   `json:"subject" validate:"required,gt=0"`
	Teacher     *int64  `json:"teacher,omitempty" validate:"omitempty,gt=0"`
	Weekday     Weekday `json:"weekday" validate:"min=1,max=6"`
	StartTime   string  `json:"start_time" validate:"required,clock"`
	EndTime     string  `json:"end_time" validate:"required,clock"`
	Room        *string `json:"room,omitempty"`
	Notes       string  `json:"notes,omitempty" validate:"max=500"`
	SlotIdx     *int    `json:"slot_idx,omitempty" validate:"omitempty,gte=0"`
}

var entryValidator = newEntryValidator()

func newEntryValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return isClock(fl.Field().String())
	})
	return v
}

// Validate checks field shapes and that the session ends after it starts.
func (in EntryInput) Validate() error {
	if err := entryValidator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid schedule entry: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	if shortTime(in.EndTime) <= shortTime(in.StartTime) {
		return errors.New("invalid schedule entry: end_time must be after start_time")
	}
	return nil
}

// isClock accepts "HH:MM" and "HH:MM:SS".
func isClock(s string) bool {
	if len(s) != 5 && len(s) != 8 {
		return false
	}
	for i, r := range s {
		switch i {
		case 2, 5:
			if r != ':' {
				return false
			}
		default:
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return s[:2] < "24" && s[3:5] < "60" && (len(s) == 5 || s[6:] < "60")
}
