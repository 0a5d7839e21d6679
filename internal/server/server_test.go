package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"
	"app-deployer/internal/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test helpers
// ==========================

type recordingSubmitter struct {
	mu       sync.Mutex
	requests []*models.BuildRequest
	err      error
}

func (r *recordingSubmitter) Submit(req *models.BuildRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, req)
	return nil
}

func newTestServer(t *testing.T, sub Submitter, checks ...ReadinessCheck) *httptest.Server {
	t.Helper()
	s := New(Config{Secret: "s3cret", MaxBodyBytes: 1 << 20}, sub, logger.NewTestLogger(t), checks...)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func validBody(overrides map[string]interface{}) string {
	body := map[string]interface{}{
		"email":          "student@example.com",
		"secret":         "s3cret",
		"task":           "captcha-solver-123",
		"round":          1,
		"nonce":          "ab12",
		"brief":          "Create a captcha solver page.",
		"evaluation_url": "https://eval.example.com/notify",
		"checks":         []string{"Repo has MIT license"},
		"attachments": []map[string]string{
			{"name": "sample.png", "url": "data:image/png;base64,iVBORw0KGgo="},
		},
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+BuildPath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// ==========================
// POST /api-endpoint
// ==========================

func TestBuild_Accepted(t *testing.T) {
	sub := &recordingSubmitter{}
	srv := newTestServer(t, sub)

	resp, body := post(t, srv, validBody(nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "received", body["status"])

	require.Len(t, sub.requests, 1)
	got := sub.requests[0]
	assert.Equal(t, "captcha-solver-123", got.Task)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, "https://eval.example.com/notify", got.EvaluationURL)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "sample.png", got.Attachments[0].Name)
}

func TestBuild_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "wrong secret", body: validBody(map[string]interface{}{"secret": "nope"}), wantCode: http.StatusForbidden, wantErr: "AUTH_FAILED"},
		{name: "missing secret", body: validBody(map[string]interface{}{"secret": nil}), wantCode: http.StatusForbidden, wantErr: "AUTH_FAILED"},
		{name: "malformed json", body: `{"secret":`, wantCode: http.StatusBadRequest, wantErr: "REQUEST_INVALID"},
		{name: "round out of range", body: validBody(map[string]interface{}{"round": 3}), wantCode: http.StatusBadRequest, wantErr: "REQUEST_INVALID"},
		{name: "missing brief", body: validBody(map[string]interface{}{"brief": nil}), wantCode: http.StatusBadRequest, wantErr: "REQUEST_INVALID"},
		{name: "bad callback url", body: validBody(map[string]interface{}{"evaluation_url": "ftp://x"}), wantCode: http.StatusBadRequest, wantErr: "REQUEST_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &recordingSubmitter{}
			srv := newTestServer(t, sub)

			resp, body := post(t, srv, tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantErr, body["code"])
			assert.Empty(t, sub.requests)
		})
	}
}

// Attachment problems are reported per entry by the pipeline, not at the door.
func TestBuild_AcceptsNonDataAttachment(t *testing.T) {
	sub := &recordingSubmitter{}
	srv := newTestServer(t, sub)

	resp, body := post(t, srv, validBody(map[string]interface{}{
		"attachments": []map[string]string{
			{"name": "sample.png", "url": "data:image/png;base64,iVBORw0KGgo="},
			{"name": "remote.csv", "url": "https://example.com/remote.csv"},
			{"name": "", "url": "data:text/plain;base64,aGk="},
		},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "received", body["status"])

	require.Len(t, sub.requests, 1)
	require.Len(t, sub.requests[0].Attachments, 3)
	assert.Equal(t, "https://example.com/remote.csv", sub.requests[0].Attachments[1].URL)
}

func TestBuild_AcceptsAnyCheckShape(t *testing.T) {
	tests := []struct {
		name   string
		checks interface{}
		want   []string
	}{
		{name: "strings", checks: []string{"Repo has MIT license"}, want: []string{"Repo has MIT license"}},
		{name: "objects", checks: []interface{}{map[string]string{"js": "document.title"}, "plain"}, want: []string{`{"js":"document.title"}`, "plain"}},
		{name: "numbers and bools", checks: []interface{}{1, true}, want: []string{"1", "true"}},
		{name: "single string", checks: "one check", want: []string{"one check"}},
		{name: "empty", checks: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &recordingSubmitter{}
			srv := newTestServer(t, sub)

			resp, body := post(t, srv, validBody(map[string]interface{}{"checks": tt.checks}))
			require.Equal(t, http.StatusOK, resp.StatusCode, body)

			require.Len(t, sub.requests, 1)
			assert.Equal(t, tt.want, []string(sub.requests[0].Checks))
		})
	}
}

func TestBuild_SecretCheckedBeforeSchema(t *testing.T) {
	srv := newTestServer(t, &recordingSubmitter{})

	resp, _ := post(t, srv, validBody(map[string]interface{}{"secret": "nope", "round": 7}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBuild_QueueFull(t *testing.T) {
	srv := newTestServer(t, &recordingSubmitter{err: pool.ErrQueueFull})

	resp, body := post(t, srv, validBody(nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "QUEUE_FULL", body["code"])
}

func TestBuild_BodyTooLarge(t *testing.T) {
	s := New(Config{Secret: "s3cret", MaxBodyBytes: 512}, &recordingSubmitter{}, logger.NewTestLogger(t))
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, body := post(t, srv, validBody(map[string]interface{}{"brief": strings.Repeat("x", 2048)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "REQUEST_INVALID", body["code"])
}

func TestBuild_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &recordingSubmitter{})

	resp, err := http.Get(srv.URL + BuildPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// ==========================
// Health, readiness, metrics
// ==========================

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &recordingSubmitter{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		check    func(ctx context.Context) error
		wantCode int
	}{
		{name: "all checks pass", check: func(ctx context.Context) error { return nil }, wantCode: http.StatusOK},
		{name: "store down", check: func(ctx context.Context) error { return errors.New("dial tcp: refused") }, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &recordingSubmitter{}, ReadinessCheck{Name: "registry", Check: tt.check})

			resp, err := http.Get(srv.URL + "/ready")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &recordingSubmitter{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
