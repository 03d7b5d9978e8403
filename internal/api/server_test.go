package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/sampling"
)

const chartBody = `{"pillars":["庚子","乙丑","丙寅","戊寅"],"annual":"丁未"}`

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Sampling.Samples = 4
	a, err := analysis.New(cfg, nil, nil)
	require.NoError(t, err)
	sm, err := sampling.New(cfg, nil)
	require.NoError(t, err)

	s := New(a, sm, nil, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestAnalyzeEndpoint(t *testing.T) {
	_, ts := newTestServer(t, DefaultOptions())

	resp, data := post(t, ts, "/v1/analyze", chartBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report analysis.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "庚子 乙丑 丙寅 戊寅 annual:丁未", report.Chart)
	assert.Equal(t, "丙", report.DayMaster)
	assert.True(t, report.StrengthLabel.Valid())
	assert.Len(t, report.Domains, 3)
}

func TestWealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, DefaultOptions())

	body := `{"pillars":["庚子","乙丑","丙寅","戊寅"],"annual":"丁未","gender":"male"}`
	resp, data := post(t, ts, "/v1/wealth", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var report analysis.WealthReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Greater(t, report.WealthIndex, 80.0)
	assert.Equal(t, constants.OpportunityHigh, report.Opportunity)
	assert.NotEmpty(t, report.Details)
}

func TestSampleEndpoint(t *testing.T) {
	_, ts := newTestServer(t, DefaultOptions())

	resp, data := post(t, ts, "/v1/sample", chartBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res sampling.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, 4, res.Samples)
	assert.NotNil(t, res.Baseline)
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t, DefaultOptions())

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"malformed json", "/v1/analyze", `{"pillars":`, "invalid request body"},
		{"wrong pillar count", "/v1/analyze", `{"pillars":["甲子"]}`, "expected 4 natal pillars"},
		{"unknown symbol", "/v1/analyze", `{"pillars":["甲子","乙丑","丙寅","丁Y"]}`, "unknown branch symbol"},
		{"bad gender", "/v1/wealth", `{"pillars":["庚子","乙丑","丙寅","戊寅"],"gender":"x"}`, "gender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Contains(t, body.Error, tt.want)
		})
	}
}

func TestRateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, ts := newTestServer(t, Options{RatePerSecond: 0, Burst: 2, Registry: reg})

	for i := 0; i < 2; i++ {
		resp, _ := post(t, ts, "/v1/analyze", chartBody)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, data := post(t, ts, "/v1/analyze", chartBody)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(data), "rate limit exceeded")

	// Health checks are not limited.
	hr, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	hr.Body.Close()
	assert.Equal(t, http.StatusOK, hr.StatusCode)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("/v1/analyze", "ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("/v1/analyze", "rate_limited", "429")))

	// Each route reports its own rejections.
	resp, _ = post(t, ts, "/v1/wealth", `{"pillars":["庚子","乙丑","丙寅","戊寅"],"gender":"male"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("/v1/wealth", "rate_limited", "429")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("/v1/*", "rate_limited", "429")))
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, DefaultOptions())
	post(t, ts, "/v1/analyze", chartBody)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(data, []byte(`qiflow_http_requests_total{code="200",outcome="ok",route="/v1/analyze"} 1`)), string(data))
	assert.Contains(t, string(data), "qiflow_http_request_duration_seconds")
	assert.Contains(t, string(data), "qiflow_strength_labels_total")
}

func TestSampleDisabled(t *testing.T) {
	a, err := analysis.New(config.Default(), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(New(a, nil, nil, DefaultOptions()).Handler())
	defer ts.Close()

	resp, _ := post(t, ts, "/v1/sample", chartBody)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	a, err := analysis.New(config.Default(), nil, nil)
	require.NoError(t, err)
	s := New(a, nil, nil, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, "ok", outcome(http.StatusOK))
	assert.Equal(t, "error", outcome(http.StatusBadGateway))
}
