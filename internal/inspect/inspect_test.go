package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/models"
	"github.com/runnerscope/runnerscope/internal/store"
)

func newTestRouter(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "telemetry_data.json"), zap.NewNop())
	return st, NewRouter(st, zap.NewNop())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	_, router := newTestRouter(t)
	w := get(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTelemetryWithoutDocument(t *testing.T) {
	_, router := newTestRouter(t)
	w := get(t, router, "/telemetry")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTelemetryReturnsDocument(t *testing.T) {
	st, router := newTestRouter(t)
	require.NoError(t, st.Save(&models.Document{
		StartTime: 1000,
		Interval:  2,
		Samples:   []models.Sample{{Timestamp: 1002, CPUPercent: 12.5}},
		Steps:     []models.Step{},
	}))

	w := get(t, router, "/telemetry")
	require.Equal(t, http.StatusOK, w.Code)

	var doc models.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, 1000.0, doc.StartTime)
	require.Len(t, doc.Samples, 1)
}

func TestLatestSample(t *testing.T) {
	st, router := newTestRouter(t)
	require.NoError(t, st.Save(&models.Document{
		Samples: []models.Sample{{Timestamp: 1}, {Timestamp: 2}},
		Steps:   []models.Step{},
	}))

	w := get(t, router, "/telemetry/latest")
	require.Equal(t, http.StatusOK, w.Code)

	var sample models.Sample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sample))
	assert.Equal(t, 2.0, sample.Timestamp)
}

func TestLatestSampleEmptyRun(t *testing.T) {
	st, router := newTestRouter(t)
	require.NoError(t, st.Save(&models.Document{
		Samples: []models.Sample{},
		Steps:   []models.Step{},
	}))

	w := get(t, router, "/telemetry/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
