package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/observability"
)

func newTestAPI(t *testing.T) (*Controller, *echo.Echo) {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"
	settings.Annotation.SampleItems = 5
	settings.Annotation.SummaryCacheTTL = 30
	settings.Annotation.DefaultThreshold = 3

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		assert.NoError(t, ds.Close())
	})

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	controller := New(e, ds, settings, metrics)
	return controller, e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func importDataset(t *testing.T, e *echo.Echo, name, rows string, classes []string) uint {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/datasets", map[string]any{
		"name":    name,
		"classes": classes,
		"rows":    rows,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		Dataset struct {
			ID uint `json:"ID"`
		} `json:"dataset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotZero(t, result.Dataset.ID)
	return result.Dataset.ID
}

func registerAnnotators(t *testing.T, e *echo.Echo, n int) []uint {
	t.Helper()
	ids := make([]uint, n)
	for i := range ids {
		rec := doJSON(t, e, http.MethodPost, "/api/v1/annotators", map[string]any{
			"name":     fmt.Sprintf("A%d", i),
			"email":    fmt.Sprintf("a%d@example.com", i),
			"password": "correct horse",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var profile struct {
			ID uint `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		ids[i] = profile.ID
	}
	return ids
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
}

func TestImportListAndDetails(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "snli", "p1\th1\np2\th2\nbad row\n", []string{"pos", "neg"})

	rec := doJSON(t, e, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[[]map[string]any](t, rec)
	require.Len(t, summaries, 1)
	assert.Equal(t, "snli", summaries[0]["name"])
	assert.EqualValues(t, 2, summaries[0]["itemCount"])

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[map[string]any](t, rec)
	samples, ok := details["sampleItems"].([]any)
	require.True(t, ok)
	assert.Len(t, samples, 2)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d/items", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	states := decode[[]map[string]any](t, rec)
	require.Len(t, states, 2)
	assert.Equal(t, "p1", states[0]["text1"])

	rec = doJSON(t, e, http.MethodGet, "/api/v1/datasets/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/datasets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignSubmitAndCompletionFlow(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\np2\th2\np3\th3\np4\th4\n", []string{"pos", "neg"})
	annotators := registerAnnotators(t, e, 2)

	rec := doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var details struct {
		Progress []struct {
			AnnotatorID uint  `json:"annotatorId"`
			Assigned    int64 `json:"assigned"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	require.Len(t, details.Progress, 2)
	assert.EqualValues(t, 2, details.Progress[0].Assigned)
	assert.EqualValues(t, 2, details.Progress[1].Assigned)

	// Work through the first annotator's queue.
	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/tasks", annotators[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []struct {
		ItemID uint `json:"itemId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)

	for _, task := range tasks {
		rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotations", task.ItemID),
			map[string]any{"annotatorId": annotators[0], "value": "pos"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d/completion", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	completion := decode[map[string]any](t, rec)
	assert.InDelta(t, 50.0, completion["completionPercent"], 0.001)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/workload?datasetId=%d", annotators[0], id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workload := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, workload["assigned"])
	assert.EqualValues(t, 2, workload["completed"])
}

func TestSubmitErrors(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\n", []string{"pos"})
	annotators := registerAnnotators(t, e, 2)

	rec := doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators[:1]})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/tasks", annotators[0]), nil)
	var tasks []struct {
		ItemID uint `json:"itemId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	itemID := tasks[0].ItemID

	// Not on the item's annotator set.
	rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotations", itemID),
		map[string]any{"annotatorId": annotators[1], "value": "pos"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Not a declared class.
	rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotations", itemID),
		map[string]any{"annotatorId": annotators[0], "value": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown item.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/items/999/annotations",
		map[string]any{"annotatorId": annotators[0], "value": "pos"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Code)
	assert.Len(t, errResp.CorrelationID, 8)
}

func TestUnassignKeepsOthersUntouched(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\np2\th2\np3\th3\n", []string{"pos"})
	annotators := registerAnnotators(t, e, 2)

	rec := doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodDelete,
		fmt.Sprintf("/api/v1/datasets/%d/assignments/%d", id, annotators[0]), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Removing again conflicts: no longer on the roster.
	rec = doJSON(t, e, http.MethodDelete,
		fmt.Sprintf("/api/v1/datasets/%d/assignments/%d", id, annotators[0]), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/workload?datasetId=%d", annotators[1], id), nil)
	workload := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, workload["assigned"])

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d/annotators/unassigned", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unassigned := decode[[]map[string]any](t, rec)
	require.Len(t, unassigned, 1)
	assert.EqualValues(t, annotators[0], unassigned[0]["id"])

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d/annotators", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decode[[]map[string]any](t, rec)
	require.Len(t, roster, 1)
	assert.EqualValues(t, annotators[1], roster[0]["id"])
}

func TestIncompleteItemsEndpoint(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\np2\th2\n", []string{"pos"})
	annotators := registerAnnotators(t, e, 1)

	rec := doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/items/incomplete?threshold=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]map[string]any](t, rec)
	assert.Len(t, items, 2)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/items/incomplete?threshold=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItemAnnotatorEndpoint(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\np2\th2\n", []string{"pos"})
	annotators := registerAnnotators(t, e, 2)

	rec := doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators[:1]})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/tasks", annotators[0]), nil)
	var tasks []struct {
		ItemID uint `json:"itemId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)

	// Second annotator is not on the roster yet.
	rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotators", tasks[0].ItemID),
		map[string]any{"annotatorId": annotators[1]})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotators", tasks[0].ItemID),
		map[string]any{"annotatorId": annotators[1]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state struct {
		AnnotatorIDs []uint `json:"annotatorIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Len(t, state.AnnotatorIDs, 2)
}

func TestAnnotatorLifecycleAndLogin(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	annotators := registerAnnotators(t, e, 1)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/auth/login",
		map[string]any{"email": "a0@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/auth/login",
		map[string]any{"email": "a0@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Duplicate email conflicts.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/annotators",
		map[string]any{"name": "Dup", "email": "a0@example.com", "password": "correct horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/v1/annotators/%d", annotators[0]), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/annotators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestDeleteDatasetEndpoint(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\n", []string{"pos"})

	rec := doJSON(t, e, http.MethodDelete, fmt.Sprintf("/api/v1/datasets/%d", id), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/datasets/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReflectsAssignSubmitAndUnassign(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	id := importDataset(t, e, "pairs", "p1\th1\np2\th2\n", []string{"pos"})
	annotators := registerAnnotators(t, e, 1)

	// Prime the summary cache; the TTL is far longer than this test.
	rec := doJSON(t, e, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[[]map[string]any](t, rec)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 0, summaries[0]["annotatorCount"])

	rec = doJSON(t, e, http.MethodPut, fmt.Sprintf("/api/v1/datasets/%d/assignments", id),
		map[string]any{"annotatorIds": annotators})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries = decode[[]map[string]any](t, rec)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 1, summaries[0]["annotatorCount"])
	assert.Zero(t, summaries[0]["completionPercent"])

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/v1/annotators/%d/tasks", annotators[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []struct {
		ItemID uint `json:"itemId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		rec = doJSON(t, e, http.MethodPost, fmt.Sprintf("/api/v1/items/%d/annotations", task.ItemID),
			map[string]any{"annotatorId": annotators[0], "value": "pos"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries = decode[[]map[string]any](t, rec)
	require.Len(t, summaries, 1)
	assert.InDelta(t, 100.0, summaries[0]["completionPercent"], 0.001)

	rec = doJSON(t, e, http.MethodDelete,
		fmt.Sprintf("/api/v1/datasets/%d/assignments/%d", id, annotators[0]), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries = decode[[]map[string]any](t, rec)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 0, summaries[0]["annotatorCount"])
	assert.Zero(t, summaries[0]["completionPercent"])
}

func TestRequestLogWrittenToConfiguredFile(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"
	settings.Annotation.SampleItems = 5
	settings.Annotation.SummaryCacheTTL = 30

	logPath := filepath.Join(t.TempDir(), "api.log")
	settings.WebServer.Log.Enabled = true
	settings.WebServer.Log.Path = logPath

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		assert.NoError(t, ds.Close())
	})

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	controller := New(e, ds, settings, metrics)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	controller.Shutdown()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"msg":"request"`)
	assert.Contains(t, content, "/api/v1/health")
	assert.Contains(t, content, `"service":"api"`)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	_, e := newTestAPI(t)

	importDataset(t, e, "pairs", "p1\th1\n", []string{"pos"})

	rec := doJSON(t, e, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tagwise_dataset_imports_total")
}
