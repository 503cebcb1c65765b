package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiServer struct {
	mu       sync.Mutex
	finished []string
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /reservations", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		fmt.Fprintf(w, `{"data":[{"reservation_id":1,"first_name":"Guest","last_name":%q,"mobile_number":"555-0100","reservation_date":%q,"reservation_time":"18:30:00","people":2}]}`, date, date)
	})
	mux.HandleFunc("GET /tables", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"table_id":1,"table_name":"#1","capacity":4,"reservation_id":1},{"table_id":2,"table_name":"#2","capacity":2,"reservation_id":null}]}`)
	})
	mux.HandleFunc("DELETE /tables/{id}/seat", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.finished = append(s.finished, r.PathValue("id"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *apiServer) finishedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...)
}

func runCmd(t *testing.T, input string, args ...string) (string, *apiServer, error) {
	t.Helper()
	api := &apiServer{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	var out bytes.Buffer
	args = append(args[:1:1], append([]string{"-api", srv.URL}, args[1:]...)...)
	err := run(context.Background(), args, strings.NewReader(input), &out, &logger)
	return out.String(), api, err
}

func TestShow(t *testing.T) {
	out, _, err := runCmd(t, "", "show", "-date", "2025-01-15")
	require.NoError(t, err)

	assert.Contains(t, out, "Today's Date: 2025-01-15")
	assert.Contains(t, out, "Guest 2025-01-15")
	assert.Contains(t, out, "18:30")
	assert.Contains(t, out, "Occupied")
	assert.Contains(t, out, "Free")
	assert.NotContains(t, out, "Error:")
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		{cmd: "next", want: "2025-01-16"},
		{cmd: "previous", want: "2025-01-14"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			out, _, err := runCmd(t, "", tt.cmd, "-date", "2025-01-15")
			require.NoError(t, err)
			assert.Contains(t, out, "Today's Date: "+tt.want)
			assert.Contains(t, out, "Guest "+tt.want)
		})
	}
}

func TestFinish(t *testing.T) {
	out, api, err := runCmd(t, "y\n", "finish", "-date", "2025-01-15", "-table", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Is this table ready to seat new guests?")
	assert.Contains(t, out, "Table 1 finished.")
	assert.Equal(t, []string{"1"}, api.finishedIDs())
}

func TestFinishDeclined(t *testing.T) {
	out, api, err := runCmd(t, "n\n", "finish", "-date", "2025-01-15", "-table", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Cancelled.")
	assert.Empty(t, api.finishedIDs())
}

func TestFinishRequiresTable(t *testing.T) {
	_, _, err := runCmd(t, "", "finish", "-date", "2025-01-15")
	assert.EqualError(t, err, "-table is required")
}

func TestRunErrors(t *testing.T) {
	logger := zerolog.New(io.Discard)
	var out bytes.Buffer

	err := run(context.Background(), nil, strings.NewReader(""), &out, &logger)
	assert.EqualError(t, err, usage)

	_, _, err = runCmd(t, "", "show", "-date", "15/01/2025")
	assert.Error(t, err)

	_, _, err = runCmd(t, "", "launch")
	assert.ErrorContains(t, err, "unknown command: launch")
}
