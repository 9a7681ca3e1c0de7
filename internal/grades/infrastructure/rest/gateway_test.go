package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway(t *testing.T) {
	type call struct {
		method, path, query string
		body                map[string]any
	}
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		calls = append(calls, c)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"results":[{"id":1,"student":2,"subject":3,"score":14.5}]}`))
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"id":9}`))
		default:
			_, _ = w.Write([]byte(`{"id":9,"student":2,"subject":3,"score":11}`))
		}
	}))
	defer server.Close()

	gw := NewGateway(api.NewClient(api.Options{BaseURL: server.URL}), nil)
	ctx := context.Background()

	grades, err := gw.List(ctx, domain.Filter{ClassID: "4", SubjectID: 3})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 14.5, grades[0].Score)

	created, err := gw.Create(ctx, domain.Grade{Student: 2, Subject: 3, Term: "T1", Score: 12})
	require.NoError(t, err)
	assert.Equal(t, domain.Grade{ID: 9, Student: 2, Subject: 3, Term: "T1", Score: 12}, created)

	updated, err := gw.UpdateScore(ctx, domain.Grade{ID: 9, Student: 2, Subject: 3, Score: 11})
	require.NoError(t, err)
	assert.Equal(t, 11.0, updated.Score)

	require.Len(t, calls, 3)
	assert.Equal(t, "school_class=4&subject=3", calls[0].query)
	assert.Equal(t, "/academics/grades/", calls[1].path)
	assert.NotContains(t, calls[1].body, "id")
	assert.Equal(t, http.MethodPatch, calls[2].method)
	assert.Equal(t, "/academics/grades/9/", calls[2].path)
	assert.Equal(t, map[string]any{"score": 11.0}, calls[2].body)
}
