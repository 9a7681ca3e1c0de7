package api

import (
	"bytes"
	"encoding/json"
)

// DecodeList decodes a collection payload that is either a bare JSON array
// or a paginated envelope of the form {"results": [...]}.
func DecodeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		return []T{}, nil
	}
	return envelope.Results, nil
}

// Decode unmarshals a JSON body into a value of type T.
func Decode[T any](raw []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
