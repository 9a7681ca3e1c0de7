package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFailed bool
		wantError  string
		wantOps    int
	}{
		{name: "empty body", body: "", wantFailed: false},
		{name: "clean report", body: `{"operations":[{"entry_id":1,"status":"ok"}]}`, wantOps: 1},
		{name: "top level error", body: `{"error":"slot taken"}`, wantFailed: true, wantError: "slot taken"},
		{name: "structured error", body: `{"error":{"code":3}}`, wantFailed: true, wantError: `{"code":3}`},
		{name: "per operation error", body: `{"results":[{"entry_id":1,"status":"ok"},{"entry_id":2,"status":"ERROR","detail":"clash"}]}`, wantFailed: true, wantOps: 2},
		{name: "bare array", body: `[1,2,3]`},
		{name: "null error is not a failure", body: `{"error":null,"operations":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ParseReport([]byte(tt.body))

			assert.Equal(t, tt.wantFailed, report.Failed())
			assert.Equal(t, tt.wantError, report.Error)
			assert.Len(t, report.Operations, tt.wantOps)
		})
	}
}

func TestParseReport_OperationFields(t *testing.T) {
	report := ParseReport([]byte(`{"operations":[{"entry_id":7,"status":"error","message":"teacher busy"}]}`))
	require.Len(t, report.Operations, 1)

	op := report.Operations[0]
	require.NotNil(t, op.EntryID)
	assert.Equal(t, int64(7), *op.EntryID)
	assert.Equal(t, "teacher busy", op.Message)
	assert.Contains(t, report.Pretty(), `"teacher busy"`)
}

func TestParseReport_PlainText(t *testing.T) {
	report := ParseReport([]byte("  Batch accepted\n"))

	assert.False(t, report.Failed())
	assert.Empty(t, report.Operations)
	assert.Equal(t, "Batch accepted", report.Pretty())
}
