package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/jobs"
	"github.com/hurttlocker/zoonotes/internal/pipeline"
	"github.com/hurttlocker/zoonotes/internal/store"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

const tigerTranscript = "Тигр Шер ест мясо 8 кг. Вес 220 кг. Здоров, активен."

type testServer struct {
	srv    *httptest.Server
	store  store.Store
	runner *jobs.Runner
	upload string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	eng, err := engine.New()
	require.NoError(t, err)
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := jobs.NewRunner(jobs.NewRegistry(), jobs.RunnerConfig{Workers: 2})
	runner.Start(context.Background())
	t.Cleanup(func() { runner.Shutdown(context.Background()) })

	provider, err := telemetry.InitProvider()
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	upload := t.TempDir()
	s := New(Config{
		Pipeline:       pipeline.New(eng, st),
		Store:          st,
		Runner:         runner,
		UploadDir:      upload,
		Metrics:        provider.Metrics,
		MetricsHandler: provider.Handler(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st, runner: runner, upload: upload}
}

func (ts *testServer) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) postJSON(t *testing.T, path string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) waitJob(t *testing.T, id string) map[string]any {
	t.Helper()
	var job map[string]any
	require.Eventually(t, func() bool {
		job = nil
		if ts.get(t, "/api/jobs/"+id, &job) != http.StatusOK {
			return false
		}
		s := job["status"]
		return s == string(jobs.StatusCompleted) || s == string(jobs.StatusFailed)
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, ts.get(t, "/", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestExtract_Synchronous(t *testing.T) {
	ts := newTestServer(t)

	var res map[string]any
	code := ts.postJSON(t, "/api/extract", map[string]any{"transcript": tigerTranscript}, &res)
	require.Equal(t, http.StatusOK, code)

	draft := res["structured_data"].(map[string]any)
	assert.Equal(t, "Тигр", draft["species"])
	assert.Equal(t, "мясо", draft["feeding"].(map[string]any)["food_type"])
	assert.Equal(t, tigerTranscript, res["transcription"])

	// Nothing persisted.
	stats, err := ts.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ObservationCount)
}

func TestExtract_BadBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.srv.URL+"/api/extract", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTranscript_CompletesAndPersists(t *testing.T) {
	ts := newTestServer(t)

	var job map[string]any
	code := ts.postJSON(t, "/api/observations", map[string]any{"transcript": tigerTranscript}, &job)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, string(jobs.StatusPending), job["status"])

	done := ts.waitJob(t, job["job_id"].(string))
	require.Equal(t, string(jobs.StatusCompleted), done["status"], "error: %v", done["error"])
	result := done["result"].(map[string]any)
	saved := result["saved"].(map[string]any)
	animalID := int64(saved["animal_id"].(float64))

	var detail map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, fmt.Sprintf("/api/animals/%d", animalID), &detail))
	assert.Equal(t, "Тигр", detail["species"])
	assert.NotNil(t, detail["latest_feeding"])

	var animals []map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, "/api/animals", &animals))
	assert.Len(t, animals, 1)

	var logEntries []map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, fmt.Sprintf("/api/animals/%d/log?limit=5", animalID), &logEntries))
	require.Len(t, logEntries, 1)
	assert.Equal(t, tigerTranscript, logEntries[0]["transcription"])

	var transcriptions []map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, "/api/transcriptions", &transcriptions))
	assert.Len(t, transcriptions, 1)

	var report map[string]any
	today := time.Now().UTC().Format(time.DateOnly)
	require.Equal(t, http.StatusOK, ts.get(t, "/api/reports/daily?date="+today, &report))
	assert.Equal(t, float64(1), report["observations_count"])
}

func TestSubmitTranscript_QueueFullReturnsJob(t *testing.T) {
	eng, err := engine.New()
	require.NoError(t, err)
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Never started, so the single queue slot stays taken.
	runner := jobs.NewRunner(jobs.NewRegistry(), jobs.RunnerConfig{Workers: 1, QueueSize: 1})
	srv := httptest.NewServer(New(Config{
		Pipeline:  pipeline.New(eng, st),
		Store:     st,
		Runner:    runner,
		UploadDir: t.TempDir(),
	}).Handler())
	t.Cleanup(srv.Close)
	ts := &testServer{srv: srv, store: st, runner: runner}

	body := map[string]any{"transcript": tigerTranscript}
	require.Equal(t, http.StatusAccepted, ts.postJSON(t, "/api/observations", body, nil))

	var rejected map[string]any
	require.Equal(t, http.StatusServiceUnavailable, ts.postJSON(t, "/api/observations", body, &rejected))
	assert.Equal(t, string(jobs.StatusFailed), rejected["status"])
	assert.Equal(t, jobs.ErrQueueFull.Error(), rejected["error"])

	var job map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, "/api/jobs/"+rejected["job_id"].(string), &job))
	assert.Equal(t, string(jobs.StatusFailed), job["status"])
}

func TestSubmitTranscript_Empty(t *testing.T) {
	ts := newTestServer(t)
	code := ts.postJSON(t, "/api/observations", map[string]any{"transcript": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func uploadAudio(t *testing.T, ts *testServer, name, transcript string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte("RIFF fake audio"))
	require.NoError(t, err)
	if transcript != "" {
		require.NoError(t, mw.WriteField("transcript", transcript))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.srv.URL+"/api/audio/process", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestSubmitAudio_WithTranscript(t *testing.T) {
	ts := newTestServer(t)

	code, job := uploadAudio(t, ts, "tiger.mp3", tigerTranscript)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "tiger.mp3", job["source"])

	var status map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, "/api/audio/status/"+job["job_id"].(string), &status))

	done := ts.waitJob(t, job["job_id"].(string))
	require.Equal(t, string(jobs.StatusCompleted), done["status"], "error: %v", done["error"])
	records := done["result"].(map[string]any)["db_records"].(map[string]any)
	obs := records["observation"].(map[string]any)
	assert.True(t, strings.HasSuffix(obs["audio_file"].(string), "_tiger.mp3"))

	matches, err := filepath.Glob(filepath.Join(ts.upload, "*_tiger.mp3*"))
	require.NoError(t, err)
	assert.Len(t, matches, 2, "recording and sidecar transcript")
}

func TestSubmitAudio_NoTranscriptFails(t *testing.T) {
	ts := newTestServer(t)

	code, job := uploadAudio(t, ts, "bear.wav", "")
	require.Equal(t, http.StatusAccepted, code)

	done := ts.waitJob(t, job["job_id"].(string))
	assert.Equal(t, string(jobs.StatusFailed), done["status"])
	assert.Contains(t, done["error"], pipeline.ErrNoTranscript.Error())
}

func TestSubmitAudio_RejectsUnknownExtension(t *testing.T) {
	ts := newTestServer(t)
	code, body := uploadAudio(t, ts, "notes.exe", tigerTranscript)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unsupported")

	entries, err := os.ReadDir(ts.upload)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobStatus_NotFound(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/api/jobs/does-not-exist", &body))
	assert.Equal(t, "Job not found", body["error"])
}

func TestAnimal_NotFoundAndBadID(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/api/animals/99", nil))
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/api/animals/99/log", nil))
	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/api/animals/abc", nil))
}

func TestListEndpoints_EmptyArrays(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/animals", "/api/transcriptions", "/api/jobs"} {
		resp, err := http.Get(ts.srv.URL + path)
		require.NoError(t, err)
		var raw bytes.Buffer
		_, err = raw.ReadFrom(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "[]", strings.TrimSpace(raw.String()), path)
	}
}

func TestTranscriptions_BadPaging(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/api/transcriptions?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/api/transcriptions?skip=-1", nil))
}

func TestDailyReport_BadDate(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/api/reports/daily?date=01.02.2024", &body))
	assert.Contains(t, body["error"], "YYYY-MM-DD")
}

func TestEntityConfig_ToggleAffectsExtraction(t *testing.T) {
	ts := newTestServer(t)

	var configs []map[string]any
	require.Equal(t, http.StatusOK, ts.get(t, "/api/entities/config", &configs))
	assert.NotEmpty(t, configs)

	var updated map[string]any
	code := ts.postJSON(t, "/api/entities/config",
		map[string]any{"entity_type": "food", "is_active": false, "priority": 2}, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, updated["is_active"])

	var res map[string]any
	require.Equal(t, http.StatusOK, ts.postJSON(t, "/api/extract", map[string]any{"transcript": tigerTranscript}, &res))
	feeding := res["structured_data"].(map[string]any)["feeding"].(map[string]any)
	assert.Nil(t, feeding["food_type"])

	records := res["db_records"].(map[string]any)
	assert.Nil(t, records["feeding"])
	assert.Equal(t, "Тигр", records["animal"].(map[string]any)["species"])
}

func TestEntityConfig_Invalid(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest,
		ts.postJSON(t, "/api/entities/config", map[string]any{"entity_type": "mood", "is_active": true}, nil))
	assert.Equal(t, http.StatusBadRequest,
		ts.postJSON(t, "/api/entities/config", map[string]any{"entity_type": "food"}, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/", nil)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw bytes.Buffer
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, raw.String(), "zoonotes_http_request_duration")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/api/extract", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
