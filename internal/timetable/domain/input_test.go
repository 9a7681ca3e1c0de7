package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryInput_Validate(t *testing.T) {
	valid := func() EntryInput {
		return EntryInput{
			SchoolClass: 1,
			Subject:     2,
			Weekday:     Tuesday,
			StartTime:   "08:00",
			EndTime:     "09:00:00",
		}
	}

	t.Run("accepts a well formed entry", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*EntryInput)
		want   string
	}{
		{"missing class", func(in *EntryInput) { in.SchoolClass = 0 }, "SchoolClass"},
		{"sunday", func(in *EntryInput) { in.Weekday = 7 }, "Weekday"},
		{"bad clock", func(in *EntryInput) { in.StartTime = "8h" }, "StartTime"},
		{"hour out of range", func(in *EntryInput) { in.EndTime = "25:00" }, "EndTime"},
		{"ends before start", func(in *EntryInput) { in.EndTime = "07:30" }, "end_time must be after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			err := in.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}
