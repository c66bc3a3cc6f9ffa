package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bf16lut/pkg/config"
	"bf16lut/pkg/core"
	"bf16lut/pkg/emit"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newServer(t).Handler()
}

func newServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "runs.db")

	log, _ := test.NewNullLogger()
	e, err := core.NewEngine(cfg, log)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return NewServer(e, log, emit.DefaultFixedFormat())
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEndpointsWithoutTable(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/api/table", "/api/eval?x=1", "/api/export", "/api/header", "/api/golden", "/api/benchmark"} {
		rec := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}

	rec := do(h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, true, stats["archive_enabled"])
	assert.NotContains(t, stats, "bins")
}

func TestGenerateFlow(t *testing.T) {
	h := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	body := `{"start":1,"end":2,"bins":4,"policy":"geometric","function":"exp2"}`
	rec = do(h, http.MethodPost, "/api/generate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "exp2", resp["function"])
	assert.Equal(t, float64(4), resp["bins"])
	assert.Equal(t, false, resp["cached"])

	rec = do(h, http.MethodPost, "/api/generate", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["cached"])

	rec = do(h, http.MethodGet, "/api/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	table := decode(t, rec)
	assert.Equal(t, "geometric", table["policy"])
	assert.Len(t, table["entries"], 4)

	rec = do(h, http.MethodGet, "/api/eval?x=1.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)["result"].(map[string]interface{})
	assert.Equal(t, float64(2), result["index"])
	assert.Equal(t, true, result["in_bin"])
	assert.Equal(t, true, result["representable"])
	assert.Equal(t, result["y_hat"], result["y_served"])

	rec = do(h, http.MethodGet, "/api/eval?x=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "bin,x,y_true,y_hat,ulp\n"))

	rec = do(h, http.MethodGet, "/api/export?kind=entries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "index,domain_start"))

	rec = do(h, http.MethodGet, "/api/header", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "constexpr int LUT_SIZE = 4;")

	rec = do(h, http.MethodGet, "/api/header?format=packed&namespace=hw", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "namespace hw {")
	assert.Contains(t, rec.Body.String(), "ac_int<PACKED_W, false>")

	rec = do(h, http.MethodGet, "/api/golden", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "3F80 "))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 129)

	rec = do(h, http.MethodGet, "/api/golden?precision=double", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 129)

	rec = do(h, http.MethodGet, "/api/golden?precision=half", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "precision")

	rec = do(h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, "Formula", stats["locator"])
	assert.Equal(t, float64(4), stats["bins"])

	rec = do(h, http.MethodGet, "/api/benchmark", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(benchmarkIterations), decode(t, rec)["iterations"])
}

func TestGenerateErrors(t *testing.T) {
	h := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/generate", `{"start":2,"end":1,"bins":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])

	rec = do(h, http.MethodPost, "/api/generate", `{"start":1,"end":2,"bins":4,"policy":"random"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/generate", `{"start":1,"end":2,"bins":4,"function":"sin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/generate", `{"start":1,"end":1.01,"bins":8,"policy":"equal-count"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h, http.MethodPost, "/api/generate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateNonFiniteTarget(t *testing.T) {
	h := newTestServer(t)

	// log2 is NaN below zero and -Inf at zero.
	rec := do(h, http.MethodPost, "/api/generate", `{"start":-1,"end":1,"bins":4,"function":"log2"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Contains(t, resp["error"], "finite")
	assert.Equal(t, float64(http.StatusUnprocessableEntity), resp["code"])

	rec = do(h, http.MethodGet, "/api/table", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/api/generate", `{"start":1,"end":2,"bins":4,"function":"log2"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	s := newServer(t)

	rec := httptest.NewRecorder()
	s.writeJSON(rec, map[string]interface{}{"worst_ulp": math.Inf(1)})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	s.writeJSON(rec, map[string]interface{}{"worst_ulp": 0.5})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.5, decode(t, rec)["worst_ulp"])
}

func TestRunsLoadAndReset(t *testing.T) {
	h := newTestServer(t)

	rec := do(h, http.MethodPost, "/api/generate", `{"start":1,"end":2,"bins":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodPost, "/api/generate", `{"start":1,"end":2,"bins":3,"policy":"equal-count"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode(t, rec)
	assert.Equal(t, float64(2), runs["count"])

	rec = do(h, http.MethodGet, "/api/stats", "")
	assert.Equal(t, "BTree", decode(t, rec)["locator"])

	first := runs["runs"].([]interface{})[1].(map[string]interface{})
	id := first["id"].(float64)
	rec = do(h, http.MethodPost, "/api/load?id="+strconv.FormatInt(int64(id), 10), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decode(t, rec)["bins"])

	rec = do(h, http.MethodPost, "/api/load?id=9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(h, http.MethodPost, "/api/load?id=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = do(h, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/runs", "")
	assert.Equal(t, float64(0), decode(t, rec)["count"])
	rec = do(h, http.MethodGet, "/api/table", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
