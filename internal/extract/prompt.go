package extract

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tyler-sommer/stick"

	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/model"
)

//go:embed prompts/system.twig
var systemTemplate string

//go:embed prompts/user.twig
var userTemplate string

// PromptBuilder renders the system instruction once and a user message per
// chunk.
type PromptBuilder struct {
	env       *stick.Env
	system    string
	maxTokens int
}

// NewPromptBuilder renders the fixed system instruction.
func NewPromptBuilder(maxTokens int) (*PromptBuilder, error) {
	b := &PromptBuilder{env: stick.New(nil), maxTokens: maxTokens}

	quoted := make([]string, len(model.FieldTypes))
	for i, ft := range model.FieldTypes {
		quoted[i] = `"` + string(ft) + `"`
	}
	system, err := b.render(systemTemplate, map[string]stick.Value{
		"field_types":  strings.Join(quoted, ", "),
		"default_type": string(model.DefaultFieldType),
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: render system prompt")
	}
	b.system = system
	return b, nil
}

// System returns the rendered system instruction.
func (b *PromptBuilder) System() string { return b.system }

// Build returns the prompt for one chunk.
func (b *PromptBuilder) Build(c model.Chunk) (llm.Prompt, error) {
	user, err := b.render(userTemplate, map[string]stick.Value{
		"first_row": c.StartIndex + 1,
		"last_row":  c.EndIndex + 1,
		"row_count": c.RowCount(),
		"header":    c.Header,
		"rows":      strings.Join(c.Rows, "\n"),
	})
	if err != nil {
		return llm.Prompt{}, eris.Wrapf(err, "extract: render prompt for %s", model.RowRange(c.StartIndex, c.EndIndex))
	}
	return llm.Prompt{System: b.system, User: user, MaxTokens: b.maxTokens}, nil
}

func (b *PromptBuilder) render(tpl string, vars map[string]stick.Value) (string, error) {
	var out strings.Builder
	if err := b.env.Execute(tpl, &out, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
