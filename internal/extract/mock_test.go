package extract

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/model"
)

// --- Provider Mock ---

type mockProvider struct {
	mock.Mock
	name   llm.Name
	models llm.Models
}

func newMockProvider(name llm.Name) *mockProvider {
	return &mockProvider{
		name: name,
		models: llm.Models{
			llm.TierSmall:  {Name: string(name) + "-small", MaxChars: 12000},
			llm.TierMedium: {Name: string(name) + "-medium", MaxChars: 12000},
			llm.TierLarge:  {Name: string(name) + "-large", MaxChars: 12000},
		},
	}
}

func (m *mockProvider) Name() llm.Name             { return m.name }
func (m *mockProvider) Model(t llm.Tier) llm.Model { return m.models.Get(t) }

func (m *mockProvider) Complete(ctx context.Context, p llm.Prompt, model string) (string, error) {
	args := m.Called(ctx, p, model)
	return args.String(0), args.Error(1)
}

// --- Scripted Provider ---

// scriptedProvider answers from a function and records every call.
type scriptedProvider struct {
	name     llm.Name
	maxChars int
	respond  func(p llm.Prompt) (string, error)

	mu    sync.Mutex
	users []string
	calls atomic.Int32
}

func (s *scriptedProvider) Name() llm.Name { return s.name }

func (s *scriptedProvider) Model(t llm.Tier) llm.Model {
	return llm.Model{Name: "scripted-" + string(t), MaxChars: s.maxChars}
}

func (s *scriptedProvider) Complete(ctx context.Context, p llm.Prompt, _ string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.users = append(s.users, p.User)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.respond(p)
}

func (s *scriptedProvider) Calls() int { return int(s.calls.Load()) }

// --- Executor Stub ---

type stubExecutor struct {
	results []stubResult
	calls   int
}

type stubResult struct {
	exec *Execution
	err  error
}

func (s *stubExecutor) Execute(_ context.Context, _ model.Chunk) (*Execution, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i].exec, s.results[i].err
}

// --- Progress Recorder ---

type recorder struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (r *recorder) Publish(ev model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses() []model.ProgressStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ProgressStatus, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Status
	}
	return out
}

func (r *recorder) forChunk(idx int) []model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProgressEvent
	for _, ev := range r.events {
		if ev.ChunkIndex == idx {
			out = append(out, ev)
		}
	}
	return out
}

// --- Fixtures ---

func testChunk(start, end int) model.Chunk {
	rows := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		rows = append(rows, "row")
	}
	return model.Chunk{Header: "question|type", Rows: rows, StartIndex: start, EndIndex: end, EstimatedSize: 100}
}

func itemsJSON(questions ...string) string {
	parts := make([]string, len(questions))
	for i, q := range questions {
		parts[i] = `{"question":"` + q + `","type":"textField","required":false}`
	}
	return "[" + strings.Join(parts, ",") + "]"
}
