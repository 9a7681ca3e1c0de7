package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	t.Run("temporary ids", func(t *testing.T) {
		id := NewTempID()
		assert.True(t, id.IsTemp())
		assert.NotEqual(t, id, NewTempID())
		assert.False(t, RecordID("42").IsTemp())
	})

	t.Run("decodes numbers and strings", func(t *testing.T) {
		var recs []Record
		err := json.Unmarshal([]byte(`[{"id":42,"status":"ABSENT"},{"id":"7"},{"id":null}]`), &recs)
		require.NoError(t, err)

		assert.Equal(t, RecordID("42"), recs[0].ID)
		assert.Equal(t, RecordID("7"), recs[1].ID)
		assert.Equal(t, RecordID(""), recs[2].ID)
	})

	t.Run("encodes server ids as numbers", func(t *testing.T) {
		out, err := json.Marshal(Record{ID: "42", Student: 1, ScheduleEntry: 7, Date: "2026-10-15", Status: StatusAbsent})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":42,"student":1,"schedule_entry":7,"date":"2026-10-15","status":"ABSENT"}`, string(out))

		out, err = json.Marshal(RecordID("temp-x"))
		require.NoError(t, err)
		assert.Equal(t, `"temp-x"`, string(out))
	})
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" late ")
	require.NoError(t, err)
	assert.Equal(t, StatusLate, st)

	_, err = ParseStatus("sick")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSheet_UnmarshalJSON(t *testing.T) {
	body := `{
		"date": "2026-10-15",
		"students": [{"id": 1, "first_name": "Awa", "last_name": "Diop"}, {"id": 2, "full_name": "Moussa Ba"}],
		"schedule": [{"id": 9, "subject_name": "Maths", "start_time": "10:00"}, {"id": 7, "subject_name": "SVT", "start_time": "08:00"}],
		"attendances": [{"id": 3, "student": 1, "schedule_entry": 7, "date": "2026-10-15", "status": "LATE"}]
	}`

	var sheet Sheet
	require.NoError(t, json.Unmarshal([]byte(body), &sheet))

	assert.Equal(t, "2026-10-15", sheet.Date)
	require.Len(t, sheet.Students, 2)
	assert.Equal(t, "Diop Awa", sheet.Students[0].Name())
	assert.Equal(t, "Moussa Ba", sheet.Students[1].Name())
	require.Len(t, sheet.Sessions, 2)
	assert.Equal(t, int64(7), sheet.Sessions[0].ID)
	require.Len(t, sheet.Records, 1)
	assert.Equal(t, CellKey{StudentID: 1, EntryID: 7}, sheet.Records[0].Key())
}

func TestUndoAction_Cells(t *testing.T) {
	single := UndoAction{Kind: UndoCreate, Key: CellKey{1, 2}}
	assert.Equal(t, []CellKey{{1, 2}}, single.Cells())

	bulk := UndoAction{Kind: UndoBulkCreate, Keys: []CellKey{{1, 2}, {3, 2}}}
	assert.Len(t, bulk.Cells(), 2)
	assert.Equal(t, "absences en masse (2)", bulk.String())
}
