package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/socflow/pkg/completion"
	"github.com/zen-systems/socflow/pkg/metrics"
	"github.com/zen-systems/socflow/pkg/pipeline"
)

// fakeAnalyzer runs a two-stage pipeline over a scripted completer.
type fakeAnalyzer struct {
	failStage string
	err       error
	got       struct{ alert, model, pipeline string }
	deadline  bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, alert, model, name string) (*pipeline.Run, error) {
	f.got.alert, f.got.model, f.got.pipeline = alert, model, name
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	p, err := pipeline.New("triage",
		&pipeline.Stage{ID: "summarize", Instruction: "Summarize {{ .Alert }}"},
		&pipeline.Stage{ID: "report", Instruction: "Report", DependsOn: []string{"summarize"}},
	)
	if err != nil {
		return nil, err
	}
	runner, err := pipeline.NewRunner(completion.CompleterFunc(func(_ context.Context, req completion.Request) (*completion.Completion, error) {
		if req.StageID == f.failStage {
			return nil, errors.New("quota exhausted")
		}
		return &completion.Completion{Text: "## Report\n- block " + req.StageID, Provider: "mock", Model: "mock-1"}, nil
	}))
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, p, alert), nil
}

func newTestServer(a Analyzer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return New(a, opts)
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze_alert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeAlertSuccess(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestServer(a, Options{RequestTimeout: time.Minute})

	rec := post(t, s, `{"alert_text":"SSH brute force from 45.12.34.7","model":"offline","pipeline":"triage"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "## Report\n- block report", resp.Report)
	assert.NotEmpty(t, resp.RunID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, "SSH brute force from 45.12.34.7", a.got.alert)
	assert.Equal(t, "offline", a.got.model)
	assert.Equal(t, "triage", a.got.pipeline)
	assert.True(t, a.deadline, "request timeout should bound the context")
}

func TestAnalyzeAlertEmpty(t *testing.T) {
	a := &fakeAnalyzer{}
	rec := post(t, newTestServer(a, Options{}), `{"alert_text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, a.got.alert, "analyzer must not be called")
}

func TestAnalyzeAlertMalformedBody(t *testing.T) {
	rec := post(t, newTestServer(&fakeAnalyzer{}, Options{}), `{"alert_text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeAlertStageFailure(t *testing.T) {
	rec := post(t, newTestServer(&fakeAnalyzer{failStage: "report"}, Options{}), `{"alert_text":"alert"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Detail, "report")
	assert.Contains(t, resp.Detail, "quota exhausted")
}

func TestAnalyzeAlertAnalyzerError(t *testing.T) {
	rec := post(t, newTestServer(&fakeAnalyzer{err: errors.New(`unknown pipeline "nope"`)}, Options{}), `{"alert_text":"alert","pipeline":"nope"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, `unknown pipeline "nope"`, resp.Detail)
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, Options{})

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/analyze_alert")

	rec = httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRun("threat", "succeeded")

	s := newTestServer(&fakeAnalyzer{}, Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socflow_runs_total")

	rec = httptest.NewRecorder()
	newTestServer(&fakeAnalyzer{}, Options{}).Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoggingMiddlewareRecordsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "run_id", "run-7")
		AddError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusInternalServerError)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "run_id=run-7")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "request_id=")
}

func TestRecoverer(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, Options{})
	s.Router.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
