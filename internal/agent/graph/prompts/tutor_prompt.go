package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/toefl-tutor-core/server/internal/agent/model"
	"github.com/toefl-tutor-core/server/internal/knowledge"
)

var responseTemplate = template.Must(template.New("tutor_response").
	Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).
	Parse(`{{.TutorName}} here, let's work on your {{.Subject}} question.

You asked: {{.Question}}

{{if .Examples}}Here {{if eq (len .Examples) 1}}is a worked example{{else}}are worked examples{{end}} close to what you're practising:
{{range $i, $ex := .Examples}}
Example {{inc $i}}:
{{$ex}}
{{end}}
Try applying the same structure to your own answer, then send me your attempt.{{end}}`))

type responseData struct {
	TutorName string
	Subject   string
	Question  string
	Examples  []string
}

// RenderTutorResponse assembles the retrieval-augmented reply shown to the
// student from the examples the store returned for their question.
func RenderTutorResponse(cfg *model.TutorPromptConfig, question string, results []knowledge.Result) (string, error) {
	examples := make([]string, 0, len(results))
	for _, r := range results {
		examples = append(examples, strings.TrimSpace(r.Entry.Text))
	}

	var sb strings.Builder
	if err := responseTemplate.Execute(&sb, responseData{
		TutorName: cfg.TutorName,
		Subject:   cfg.Subject,
		Question:  question,
		Examples:  examples,
	}); err != nil {
		return "", fmt.Errorf("render tutor response: %w", err)
	}
	return sb.String(), nil
}

// RenderFallback is the reply used when retrieval produced nothing usable.
func RenderFallback(cfg *model.TutorPromptConfig) string {
	return fmt.Sprintf(
		"%s here, I don't have a worked example for that yet. Could you rephrase your question, or tell me which %s task you're working on?",
		cfg.TutorName, cfg.Subject)
}
