package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OperationStatusError marks a per-operation failure inside a report.
const OperationStatusError = "error"

// OperationResult is one line of a validation/apply/conflict report.
type OperationResult struct {
	EntryID *int64
	Status  string
	Message string
	Fields  map[string]any
}

// Report is what the batch and conflict endpoints return. Its shape is
// owned by the server, so only the error and per-operation status are
// interpreted; Raw keeps the full document for display.
type Report struct {
	Error      string
	Operations []OperationResult
	Raw        any
}

// Failed reports a logical failure carried in a successful response.
func (r Report) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, op := range r.Operations {
		if op.Status == OperationStatusError {
			return true
		}
	}
	return false
}

// Pretty renders Raw as indented JSON, or as-is when the body was not JSON.
func (r Report) Pretty() string {
	if r.Raw == nil {
		return "{}"
	}
	if text, ok := r.Raw.(rawText); ok {
		return string(text)
	}
	out, err := json.MarshalIndent(r.Raw, "", "  ")
	if err != nil {
		return fmt.Sprint(r.Raw)
	}
	return string(out)
}

// rawText is a report body that was not JSON.
type rawText string

// ParseReport reads a report body leniently. A body that is not a JSON
// object is kept in Raw and yields an empty, successful report.
func ParseReport(raw []byte) Report {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Report{}
	}
	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return Report{Raw: rawText(trimmed)}
	}
	report := Report{Raw: doc}

	obj, ok := doc.(map[string]any)
	if !ok {
		return report
	}
	if v, ok := obj["error"]; ok && v != nil {
		report.Error = stringify(v)
	}
	for _, key := range []string{"operations", "results", "conflicts"} {
		items, ok := obj[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			if fields, ok := item.(map[string]any); ok {
				report.Operations = append(report.Operations, operationResult(fields))
			}
		}
		break
	}
	return report
}

func operationResult(fields map[string]any) OperationResult {
	res := OperationResult{Fields: fields}
	if id, ok := fields["entry_id"].(float64); ok {
		v := int64(id)
		res.EntryID = &v
	}
	if s, ok := fields["status"].(string); ok {
		res.Status = strings.ToLower(s)
	}
	for _, key := range []string{"message", "detail", "error"} {
		if v, ok := fields[key]; ok && v != nil {
			res.Message = stringify(v)
			break
		}
	}
	return res
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
