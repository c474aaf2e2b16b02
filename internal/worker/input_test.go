package worker_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/worker"
)

func TestParseInputSpecLocalPath(t *testing.T) {
	t.Parallel()
	spec, err := worker.ParseInputSpec(map[string]any{"input": map[string]any{"file_path": "/data/x.csv"}})
	require.NoError(t, err)
	assert.Equal(t, "/data/x.csv", spec.FilePath)
}

func TestParseInputSpecRejectsEmpty(t *testing.T) {
	t.Parallel()
	_, err := worker.ParseInputSpec(map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAcquireLocalPathIsInPlace(t *testing.T) {
	t.Parallel()
	path, cleanup, err := worker.Acquire(t.Context(), nil, nil, worker.InputSpec{FilePath: "/data/x.csv"})
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "/data/x.csv", path)
}

func TestAcquireURLDownloadsToTemp(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("a,b,c\n1,2,3\n"))
	}))
	defer srv.Close()

	path, cleanup, err := worker.Acquire(t.Context(), nil, srv.Client(), worker.InputSpec{URL: srv.URL + "/businesses.csv"})
	require.NoError(t, err)
	defer cleanup()

	require.True(t, strings.HasSuffix(path, ".csv"))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "a,b,c")
}

func TestAcquireURLFailureStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := worker.Acquire(t.Context(), nil, srv.Client(), worker.InputSpec{URL: srv.URL + "/missing.csv"})
	require.Error(t, err)
}
