package generate

import (
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

const systemPrompt = "You are an experienced teacher who writes exam questions. " +
	"Follow the user's requirements exactly and reply with JSON only."

var subjectNames = map[string]string{
	"math":        "Mathematics",
	"chinese":     "Chinese",
	"english":     "English",
	"physics":     "Physics",
	"chemistry":   "Chemistry",
	"biology":     "Biology",
	"history":     "History",
	"geography":   "Geography",
	"information": "Information Technology",
}

var typeNames = map[question.Type]string{
	question.TypeChoice:      "multiple-choice questions",
	question.TypeFill:        "fill-in-the-blank questions",
	question.TypeEssay:       "short-answer questions",
	question.TypeCalculation: "calculation problems",
}

var difficultyNames = map[int]string{
	1: "easy",
	2: "fairly easy",
	3: "medium",
	4: "fairly hard",
	5: "hard",
}

// shapes is the JSON reply format requested for each question type.
var shapes = map[question.Type]string{
	question.TypeChoice: `{
  "questions": [
    {
      "id": 1,
      "type": "choice",
      "title": "Question title",
      "content": "Question text",
      "options": ["A. option 1", "B. option 2", "C. option 3", "D. option 4"],
      "correct_answer": "A",
      "explanation": "Why the answer is correct"
    }
  ]
}`,
	question.TypeFill: `{
  "questions": [
    {
      "id": 1,
      "type": "fill",
      "title": "Question title",
      "content": "Question text, with ______ marking each blank",
      "correct_answer": "The answer",
      "explanation": "Why the answer is correct"
    }
  ]
}`,
	question.TypeEssay: `{
  "questions": [
    {
      "id": 1,
      "type": "essay",
      "title": "Question title",
      "content": "Question text",
      "reference_answer": "Key points of a good answer",
      "explanation": "How to approach the question"
    }
  ]
}`,
	question.TypeCalculation: `{
  "questions": [
    {
      "id": 1,
      "type": "calculation",
      "title": "Question title",
      "content": "Question text",
      "solution_steps": "Step by step solution",
      "final_answer": "Final answer",
      "explanation": "How to approach the problem"
    }
  ]
}`,
}

func gradeName(g string) string {
	if n, ok := strings.CutPrefix(g, "grade"); ok && n != "" {
		return "grade " + n
	}
	return g
}

func lookup(m map[string]string, k string) string {
	if v, ok := m[k]; ok {
		return v
	}
	return k
}

// BuildPrompt renders the user prompt for a validated request.
func BuildPrompt(r Request) string {
	t, ok := question.ParseType(r.QuestionType)
	if !ok {
		t = question.TypeChoice
	}
	difficulty := difficultyNames[r.Difficulty]
	if difficulty == "" {
		difficulty = difficultyNames[question.DefaultDifficulty]
	}
	grade := gradeName(r.Grade)

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s %s for %s students. Difficulty: %s.\n\n",
		r.Count, lookup(subjectNames, r.Subject), typeNames[t], grade, difficulty)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "1. The content must suit the level of %s students.\n", grade)
	fmt.Fprintf(&b, "2. Difficulty: %s.\n", difficulty)
	fmt.Fprintf(&b, "3. Question type: %s.\n", typeNames[t])
	n := 4
	if r.KnowledgePoints != "" {
		fmt.Fprintf(&b, "%d. Cover these topics: %s.\n", n, r.KnowledgePoints)
		n++
	}
	if r.CustomRequirements != "" {
		fmt.Fprintf(&b, "%d. Additional requirements: %s.\n", n, r.CustomRequirements)
	}
	b.WriteString("\nReply strictly in the following JSON format, with no other text:\n")
	b.WriteString(shapes[t])
	b.WriteString("\n")
	return b.String()
}
