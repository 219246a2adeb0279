package generate

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

// Mock produces deterministic drafts. It is used when no model API key is
// configured.
type Mock struct{}

func (Mock) Generate(_ context.Context, r Request) ([]question.Draft, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	t, _ := question.ParseType(r.QuestionType)
	out := make([]question.Draft, 0, r.Count)
	for i := 1; i <= r.Count; i++ {
		d := question.Draft{
			"id":          fmt.Sprintf("%d", i),
			"type":        string(t),
			"title":       fmt.Sprintf("%s practice %d", r.Subject, i),
			"explanation": "Generated offline.",
		}
		switch t {
		case question.TypeChoice:
			d["content"] = fmt.Sprintf("What is %d + %d?", i, i)
			d["options"] = []any{
				fmt.Sprintf("A. %d", 2*i), fmt.Sprintf("B. %d", 2*i+1),
				fmt.Sprintf("C. %d", 2*i-1), fmt.Sprintf("D. %d", 2*i+2),
			}
			d["correct_answer"] = "A"
		case question.TypeFill:
			d["content"] = fmt.Sprintf("%d + %d = ______", i, i)
			d["correct_answer"] = fmt.Sprintf("%d", 2*i)
		case question.TypeEssay:
			d["content"] = fmt.Sprintf("Explain why %d is %s.", i, parity(i))
			d["reference_answer"] = fmt.Sprintf("%d is %s because of its remainder when divided by 2.", i, parity(i))
		case question.TypeCalculation:
			d["content"] = fmt.Sprintf("Compute %d * %d.", i, i+1)
			d["solution_steps"] = fmt.Sprintf("%d * %d = %d", i, i+1, i*(i+1))
			d["final_answer"] = fmt.Sprintf("%d", i*(i+1))
		}
		out = append(out, d)
	}
	return out, nil
}

func parity(n int) string {
	if n%2 == 0 {
		return "even"
	}
	return "odd"
}
