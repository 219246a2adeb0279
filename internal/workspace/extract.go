package workspace

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

// Extract re-derives the questions shown in a rendered view. Each card is
// turned back into a draft and normalized, so an edited card yields the same
// shape a fresh Load would.
func Extract(view []byte) ([]question.Question, error) {
	cards, err := parseCards(view)
	if err != nil {
		return nil, err
	}
	out := make([]question.Question, 0, len(cards))
	for i, card := range cards {
		out = append(out, question.Normalize(cardDraft(card), question.Context{Index: i}))
	}
	return out, nil
}

func parseCards(view []byte) ([]*html.Node, error) {
	if len(bytes.TrimSpace(view)) == 0 {
		return nil, nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(view), body)
	if err != nil {
		return nil, fmt.Errorf("parse view: %w", err)
	}
	var cards []*html.Node
	for _, n := range nodes {
		cards = append(cards, findAll(n, classCard)...)
	}
	return cards, nil
}

func cardDraft(card *html.Node) question.Draft {
	d := question.Draft{
		"id":         attr(card, "data-question-id"),
		"type":       attr(card, "data-type"),
		"subject":    attr(card, "data-subject"),
		"grade":      attr(card, "data-grade"),
		"difficulty": attr(card, "data-difficulty"),
	}
	if _, ok := question.ParseType(attr(card, "data-type")); !ok {
		if n := find(card, classType); n != nil {
			d["type"] = text(n)
		}
	}
	d["title"] = textOfFirst(card, classTitle, atom.H4)
	d["content"] = textOfFirst(card, classBody, atom.P)

	options := []string{}
	for _, item := range findAll(card, classOption) {
		if n := find(item, classOptionText); n != nil {
			options = append(options, text(n))
			continue
		}
		options = append(options, stripOptionLabel(text(item), len(options)))
	}
	d["options"] = options

	d["correct_answer"] = labelledText(card, classAnswer, classAnswerText, "Answer:")
	d["explanation"] = labelledText(card, classExplanation, classExplainText, "Explanation:")
	return d
}

// labelledText reads the value span of a labelled block, falling back to the
// block text minus its label when the span was edited away.
func labelledText(card *html.Node, block, value, label string) string {
	b := find(card, block)
	if b == nil {
		return ""
	}
	if v := find(b, value); v != nil {
		return text(v)
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text(b)), label))
}

func stripOptionLabel(s string, i int) string {
	s = strings.TrimSpace(s)
	prefix := optionLabel(i) + "."
	if strings.HasPrefix(s, prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return s
}

func textOfFirst(card *html.Node, class string, fallback atom.Atom) string {
	if n := find(card, class); n != nil {
		return text(n)
	}
	var hit *html.Node
	walk(card, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == fallback {
			hit = n
			return false
		}
		return true
	})
	if hit == nil {
		return ""
	}
	return text(hit)
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func find(root *html.Node, class string) *html.Node {
	var hit *html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && hasClass(n, class) {
			hit = n
			return false
		}
		return true
	})
	return hit
}

func findAll(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}
