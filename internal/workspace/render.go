package workspace

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

// Class names shared by the renderer and the extractor.
const (
	classCard        = "question-card"
	classType        = "question-type"
	classTitle       = "question-title"
	classBody        = "question-body"
	classOption      = "option-item"
	classOptionText  = "option-text"
	classAnswer      = "question-answer"
	classAnswerText  = "answer-text"
	classExplanation = "question-explanation"
	classExplainText = "explanation-text"
)

var cardsTmpl = template.Must(template.New("cards").Funcs(template.FuncMap{
	"label": optionLabel,
	"inc":   func(i int) int { return i + 1 },
}).Parse(`<div class="generated-questions">
{{- range $i, $q := . }}
<div class="question-card" data-question-id="{{$q.ID}}" data-type="{{$q.Type}}" data-subject="{{$q.Subject}}" data-grade="{{$q.Grade}}" data-difficulty="{{$q.Difficulty}}">
<div class="question-header"><span class="question-number">Question {{inc $i}}</span> <span class="question-type">{{$q.Type}}</span> <span class="question-difficulty">Difficulty: {{$q.Difficulty}}</span></div>
<div class="question-content"><h4 class="question-title">{{$q.Title}}</h4><p class="question-body">{{$q.Content}}</p>
{{- if $q.Options}}<div class="question-options">{{range $j, $o := $q.Options}}<div class="option-item"><span class="option-label">{{label $j}}.</span> <span class="option-text">{{$o}}</span></div>{{end}}</div>{{end -}}
</div>
<div class="question-answer"><strong>Answer:</strong> <span class="answer-text">{{$q.CorrectAnswer}}</span></div>
<div class="question-explanation"><strong>Explanation:</strong> <span class="explanation-text">{{$q.Explanation}}</span></div>
</div>
{{- end }}
</div>
`))

func optionLabel(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}

// Render produces the HTML card view for qs.
func Render(qs []question.Question) ([]byte, error) {
	var buf bytes.Buffer
	if err := cardsTmpl.Execute(&buf, qs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
