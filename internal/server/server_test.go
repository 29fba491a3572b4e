package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/checklist-cli/internal/extract"
	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
	"github.com/sells-group/checklist-cli/internal/resilience"
)

type stubExtractor struct {
	got extract.Input
	res *model.ExtractionResult
	err error
}

func (s *stubExtractor) Extract(_ context.Context, in extract.Input) (*model.ExtractionResult, error) {
	s.got = in
	if s.res != nil {
		s.res.JobID = in.JobID
	}
	return s.res, s.err
}

type stubBreakers map[string]resilience.CircuitState

func (s stubBreakers) States() map[string]resilience.CircuitState { return s }

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postExtract(t *testing.T, h http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/checklist/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := New(&stubExtractor{}, progress.NewBroadcaster(), stubBreakers{"anthropic": resilience.CircuitClosed}, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.Breakers["anthropic"])
}

func TestHealth_NoBreakers(t *testing.T) {
	srv := New(&stubExtractor{}, progress.NewBroadcaster(), nil, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"breakers":{}`)
}

func TestExtract_OK(t *testing.T) {
	ext := &stubExtractor{res: &model.ExtractionResult{
		Items:       []model.ChecklistItem{{ID: 1, Question: "Q1", Type: model.FieldDate, Required: true}},
		Failures:    []model.ChunkFailure{},
		TotalChunks: 1,
		TotalRows:   1,
	}}
	srv := New(ext, progress.NewBroadcaster(), nil, Options{})
	jobID := "6f1c1c1e-8d8a-4c53-9d0b-6a4c3f1e2b7a"

	rec := postExtract(t, srv.Handler(), "list.csv", []byte("question,type\nQ1,date\n"), map[string]string{"job_id": jobID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, jobID, ext.got.JobID)
	assert.Equal(t, "question | type", ext.got.Header)
	assert.Equal(t, []string{"Q1 | date"}, ext.got.DataRows)

	var res model.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, jobID, res.JobID)
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.FieldDate, res.Items[0].Type)
}

func TestExtract_GeneratesJobID(t *testing.T) {
	ext := &stubExtractor{res: &model.ExtractionResult{}}
	srv := New(ext, progress.NewBroadcaster(), nil, Options{})

	rec := postExtract(t, srv.Handler(), "list.csv", []byte("question\nQ1\n"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ext.got.JobID, 36)
}

func TestExtract_BadRequests(t *testing.T) {
	srv := New(&stubExtractor{res: &model.ExtractionResult{}}, progress.NewBroadcaster(), nil, Options{})
	h := srv.Handler()

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		want     string
	}{
		{"missing file", "", nil, nil, "file is required"},
		{"bad job id", "a.csv", []byte("q\nQ1\n"), map[string]string{"job_id": "not-a-uuid"}, "job_id must be a UUID"},
		{"long sheet name", "a.csv", []byte("q\nQ1\n"), map[string]string{"sheet": strings.Repeat("s", 200)}, "sheet name too long"},
		{"unsupported file", "doc.pdf", []byte("%PDF-1.7\n"), nil, "unsupported file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postExtract(t, h, tt.filename, tt.content, tt.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestExtract_NotMultipart(t *testing.T) {
	srv := New(&stubExtractor{}, progress.NewBroadcaster(), nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/checklist/extract", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty input", extract.ErrEmptyInput, http.StatusBadRequest},
		{"no provider", extract.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"other", eris.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&stubExtractor{err: tt.err}, progress.NewBroadcaster(), nil, Options{})
			rec := postExtract(t, srv.Handler(), "a.csv", []byte("question\nQ1\n"), nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestProgress_StreamsJobEvents(t *testing.T) {
	b := progress.NewBroadcaster()
	srv := New(&stubExtractor{}, b, nil, Options{Keepalive: time.Hour})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/checklist/progress?job_id=job-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	b.Publish(model.ProgressEvent{JobID: "other", Status: model.StatusStarted})
	b.Publish(model.ProgressEvent{JobID: "job-1", ChunkIndex: 0, TotalChunks: 1, Status: model.StatusProcessing, Attempt: 1})
	b.Publish(model.ProgressEvent{JobID: "job-1", ChunkIndex: -1, TotalChunks: 1, Status: model.StatusCompleted})

	var events []model.ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev model.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, model.StatusProcessing, events[0].Status)
	assert.Equal(t, model.StatusCompleted, events[1].Status)
	for _, ev := range events {
		assert.Equal(t, "job-1", ev.JobID)
	}
	require.Eventually(t, func() bool { return b.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestProgress_Keepalive(t *testing.T) {
	b := progress.NewBroadcaster()
	srv := New(&stubExtractor{}, b, nil, Options{Keepalive: 10 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/checklist/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	scanner := bufio.NewScanner(resp.Body)
	seen := false
	for scanner.Scan() {
		if scanner.Text() == ": keepalive" {
			seen = true
			break
		}
	}
	assert.True(t, seen)
}
