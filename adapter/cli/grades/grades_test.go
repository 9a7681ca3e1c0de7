package grades

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/felixgeelhaar/schooldesk/internal/api"
	gradesApp "github.com/felixgeelhaar/schooldesk/internal/grades/application"
	"github.com/felixgeelhaar/schooldesk/internal/grades/domain"
	"github.com/felixgeelhaar/schooldesk/internal/grades/infrastructure/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func setup(t *testing.T) *[]request {
	t.Helper()
	classID, subjectID, term, jsonOutput = "4", 0, "T1", false

	var requests []request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		_ = json.NewDecoder(r.Body).Decode(&req.body)
		requests = append(requests, req)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":5,"student":31,"subject":2,"term":"T1","score":9}]`))
		case http.MethodPatch:
			_, _ = w.Write([]byte(`{"id":5}`))
		default:
			_, _ = w.Write([]byte(`{"id":6}`))
		}
	}))
	t.Cleanup(server.Close)

	gw := rest.NewGateway(api.NewClient(api.Options{BaseURL: server.URL}), nil)
	cli.SetApp(&cli.App{Grades: gradesApp.NewSheet(gw, 20, nil, nil)})
	t.Cleanup(func() { cli.SetApp(nil) })
	return &requests
}

func TestList(t *testing.T) {
	requests := setup(t)

	var out strings.Builder
	listCmd.SetContext(context.Background())
	listCmd.SetOut(&out)
	require.NoError(t, listCmd.RunE(listCmd, nil))

	assert.Contains(t, out.String(), "Grades (1)")
	assert.Contains(t, out.String(), "9.00 T1")
	assert.Equal(t, "school_class=4&term=T1", (*requests)[0].query)
}

func TestSet(t *testing.T) {
	t.Run("existing grade is patched", func(t *testing.T) {
		requests := setup(t)

		var out strings.Builder
		setCmd.SetContext(context.Background())
		setCmd.SetOut(&out)
		require.NoError(t, setCmd.RunE(setCmd, []string{"31", "2", "14,5"}))

		assert.Contains(t, out.String(), "Grade saved: student 31 / subject 2 = 14.50")
		require.Len(t, *requests, 2)
		assert.Equal(t, http.MethodPatch, (*requests)[1].method)
		assert.Equal(t, map[string]any{"score": 14.5}, (*requests)[1].body)
	})

	t.Run("new grade is created", func(t *testing.T) {
		requests := setup(t)

		setCmd.SetContext(context.Background())
		setCmd.SetOut(&strings.Builder{})
		require.NoError(t, setCmd.RunE(setCmd, []string{"32", "2", "12"}))

		require.Len(t, *requests, 2)
		assert.Equal(t, http.MethodPost, (*requests)[1].method)
		assert.Equal(t, 32.0, (*requests)[1].body["student"])
		assert.Equal(t, "T1", (*requests)[1].body["term"])
	})

	t.Run("out of range score is refused locally", func(t *testing.T) {
		requests := setup(t)

		setCmd.SetContext(context.Background())
		err := setCmd.RunE(setCmd, []string{"31", "2", "21"})

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, *requests, 1, "only the load reached the server")
	})
}
