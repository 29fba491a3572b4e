package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
)

// echoRows answers with one item per "question|type|required" row in the
// prompt.
func echoRows(p llm.Prompt) (string, error) {
	_, rows, ok := strings.Cut(p.User, "Rows:\n")
	if !ok {
		return "", errors.New("no rows in prompt")
	}
	var out []map[string]any
	for _, line := range strings.Split(rows, "\n") {
		cols := strings.Split(line, "|")
		item := map[string]any{"question": cols[0]}
		if len(cols) > 1 {
			item["type"] = cols[1]
		}
		if len(cols) > 2 {
			item["required"] = cols[2]
		}
		out = append(out, item)
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func testOptions() Options {
	o := DefaultOptions()
	o.BackoffBase = time.Millisecond
	o.BackoffMax = 2 * time.Millisecond
	return o
}

func newTestExtractor(t *testing.T, p llm.Provider, opts Options, rec *recorder) *Extractor {
	t.Helper()
	var providers []llm.Provider
	if p != nil {
		providers = []llm.Provider{p}
	}
	var sink progress.Sink
	if rec != nil {
		sink = rec
	}
	e, err := New(providers, opts, sink)
	require.NoError(t, err)
	return e
}

func TestExtract_ThreeRowsRequired(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: echoRows}
	e := newTestExtractor(t, p, testOptions(), nil)

	res, err := e.Extract(context.Background(), Input{
		Header: "question|type|required",
		DataRows: []string{
			"Is the exit clear?|checkbox|true",
			"Inspector name|textField|true",
			"Inspection date|date|true",
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	for i, it := range res.Items {
		assert.Equal(t, i+1, it.ID)
		assert.True(t, it.Required)
	}
	assert.Equal(t, model.FieldCheckbox, res.Items[0].Type)
	assert.Equal(t, model.FieldDate, res.Items[2].Type)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 1, res.TotalChunks)
	assert.Equal(t, 3, res.TotalRows)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, 1, p.Calls())
}

func partialFailureRows() []string {
	rows := make([]string, 10)
	for i := range rows {
		rows[i] = fmt.Sprintf("Q%02d|textField", i+1)
	}
	return rows
}

func TestExtract_PartialFailure(t *testing.T) {
	// Header plus five 14-char rows fill a 90 char budget, so the ten rows
	// split into two chunks of five.
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 90, respond: func(pr llm.Prompt) (string, error) {
		if strings.Contains(pr.User, "Q06") {
			return "", errors.New("upstream 500")
		}
		return echoRows(pr)
	}}
	opts := testOptions()
	opts.SizeOverhead = 0
	opts.SmallDatasetRows = 0
	opts.MinRowsPerChunk = 5
	opts.MaxRetries = 2
	rec := &recorder{}
	e := newTestExtractor(t, p, opts, rec)

	res, err := e.Extract(context.Background(), Input{
		JobID:    "job-partial",
		Header:   "question|type",
		DataRows: partialFailureRows(),
	})
	require.NoError(t, err)

	assert.Equal(t, "job-partial", res.JobID)
	assert.Equal(t, 2, res.TotalChunks)
	require.Len(t, res.Items, 5)
	assert.Equal(t, "Q01", res.Items[0].Question)
	assert.Equal(t, 5, res.Items[4].ID)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, 1, f.ChunkIndex)
	assert.Equal(t, 5, f.StartIndex)
	assert.Equal(t, 9, f.EndIndex)
	assert.Equal(t, "rows 6-10", f.AffectedRows)
	assert.Contains(t, f.Error, "upstream 500")
	assert.True(t, res.Partial())

	// One call for the first chunk, three for the second.
	assert.Equal(t, 4, p.Calls())

	failed := rec.forChunk(1)
	require.NotEmpty(t, failed)
	last := failed[len(failed)-1]
	assert.Equal(t, model.StatusFailed, last.Status)
	assert.Equal(t, 3, last.Attempt)
	assert.Equal(t, "job-partial", last.JobID)
}

func TestExtract_SmallInputSingleChunk(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: echoRows}
	e := newTestExtractor(t, p, testOptions(), nil)

	rows := make([]string, 10)
	for i := range rows {
		rows[i] = fmt.Sprintf("Question %d|textField", i+1)
	}
	res, err := e.Extract(context.Background(), Input{Header: "question|type", DataRows: rows})
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalChunks)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, 1, p.Calls())
}

func TestExtract_UnknownTypeWarns(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: func(llm.Prompt) (string, error) {
		return `[{"question":"Q","type":"foo","required":false}]`, nil
	}}
	e := newTestExtractor(t, p, testOptions(), nil)

	res, err := e.Extract(context.Background(), Input{Header: "question|type", DataRows: []string{"Q|foo"}})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, model.FieldTextField, res.Items[0].Type)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `unknown type "foo"`)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "row 1: "))
}

func TestExtract_NullWrappedReplyRecordedAsFailure(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: func(llm.Prompt) (string, error) {
		return `{"items": null}`, nil
	}}
	opts := testOptions()
	opts.MaxRetries = 1
	e := newTestExtractor(t, p, opts, nil)

	res, err := e.Extract(context.Background(), Input{
		Header:   "question|type",
		DataRows: []string{"A|textField", "B|textField", "C|textField"},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "rows 1-3", res.Failures[0].AffectedRows)
	assert.Equal(t, 3, res.Failures[0].RowCount)
	assert.Contains(t, res.Failures[0].Error, "malformed")
	assert.Equal(t, 2, p.Calls())
}

func TestExtract_EmptyInput(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: echoRows}
	e := newTestExtractor(t, p, testOptions(), nil)

	res, err := e.Extract(context.Background(), Input{Header: "question"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, p.Calls())
}

func TestExtract_NoProviders(t *testing.T) {
	e := newTestExtractor(t, nil, testOptions(), nil)

	_, err := e.Extract(context.Background(), Input{Header: "question", DataRows: []string{"Q"}})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestExtract_LifecycleEvents(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 12000, respond: echoRows}
	rec := &recorder{}
	e := newTestExtractor(t, p, testOptions(), rec)

	_, err := e.Extract(context.Background(), Input{JobID: "job-ev", Header: "question", DataRows: []string{"A", "B"}})
	require.NoError(t, err)

	assert.Equal(t, []model.ProgressStatus{
		model.StatusStarted,
		model.StatusProcessing,
		model.StatusSuccess,
		model.StatusCompleted,
	}, rec.statuses())
	assert.Equal(t, -1, rec.events[0].ChunkIndex)
	assert.Equal(t, 1, rec.events[0].TotalChunks)
	assert.Equal(t, -1, rec.events[3].ChunkIndex)
	for _, ev := range rec.events {
		assert.Equal(t, "job-ev", ev.JobID)
	}
}

func TestExtract_CancelReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &scriptedProvider{name: llm.Anthropic, maxChars: 90}
	p.respond = func(pr llm.Prompt) (string, error) {
		cancel()
		return echoRows(pr)
	}
	opts := testOptions()
	opts.SizeOverhead = 0
	opts.SmallDatasetRows = 0
	e := newTestExtractor(t, p, opts, nil)

	res, err := e.Extract(ctx, Input{Header: "question|type", DataRows: partialFailureRows()})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, res)
	assert.Len(t, res.Items, 5)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].ChunkIndex)
	assert.Equal(t, 1, p.Calls())
}

func TestExtractor_Plan(t *testing.T) {
	p := &scriptedProvider{name: llm.Anthropic, maxChars: 90, respond: echoRows}
	opts := testOptions()
	opts.SizeOverhead = 0
	opts.SmallDatasetRows = 0
	e := newTestExtractor(t, p, opts, nil)

	chunks := e.Plan(Input{Header: "question|type", DataRows: partialFailureRows()})
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, 4, chunks[0].EndIndex)
	assert.Equal(t, 5, chunks[1].StartIndex)
	assert.Equal(t, 9, chunks[1].EndIndex)
	assert.LessOrEqual(t, chunks[0].EstimatedSize, 90)
}
