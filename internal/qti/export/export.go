// Package export writes question sets as IMS QTI 2.1 content packages.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

const qtiNS = "http://www.imsglobal.org/xsd/imsqti_v2p1"

// BuildPackage returns a zip holding imsmanifest.xml and one item file per
// question.
func BuildPackage(qs []question.Question) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	mf := imsManifest{Xmlns: "http://www.imsglobal.org/xsd/imscp_v1p1"}
	for i, q := range qs {
		id := itemIdentifier(q.ID, i)
		itemName := id + ".xml"
		mf.Resources = append(mf.Resources, imsResource{
			Identifier: id,
			Type:       "imsqti_item_xmlv2p1",
			Href:       itemName,
			Files:      []imsFile{{Href: itemName}},
		})
		item, err := buildItemXML(id, q)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", q.ID, err)
		}
		w, err := zw.Create(itemName)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(item); err != nil {
			return nil, err
		}
	}

	mfw, err := zw.Create("imsmanifest.xml")
	if err != nil {
		return nil, err
	}
	b, err := xml.MarshalIndent(mf, "", "  ")
	if err != nil {
		return nil, err
	}
	mfw.Write([]byte(xml.Header))
	mfw.Write(b)

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- mini XML model for manifest (export only) ---
type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Xmlns     string        `xml:"xmlns,attr,omitempty"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string    `xml:"identifier,attr"`
	Type       string    `xml:"type,attr"`
	Href       string    `xml:"href,attr"`
	Files      []imsFile `xml:"file"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}

// --- item model ---
type assessmentItem struct {
	XMLName    xml.Name             `xml:"assessmentItem"`
	Xmlns      string               `xml:"xmlns,attr"`
	Identifier string               `xml:"identifier,attr"`
	Title      string               `xml:"title,attr"`
	Response   *responseDeclaration `xml:"responseDeclaration,omitempty"`
	Body       itemBody             `xml:"itemBody"`
	Feedback   *modalFeedback       `xml:"modalFeedback,omitempty"`
}
type responseDeclaration struct {
	Identifier  string           `xml:"identifier,attr"`
	Cardinality string           `xml:"cardinality,attr"`
	BaseType    string           `xml:"baseType,attr"`
	Correct     *correctResponse `xml:"correctResponse,omitempty"`
}
type correctResponse struct {
	Values []string `xml:"value"`
}
type itemBody struct {
	Prompt   string            `xml:"p"`
	Choice   *choiceBlock      `xml:"choiceInteraction,omitempty"`
	Text     *textEntryBlock   `xml:"textEntryInteraction,omitempty"`
	Extended *extendedTextBody `xml:"extendedTextInteraction,omitempty"`
}
type choiceBlock struct {
	ResponseIdentifier string         `xml:"responseIdentifier,attr"`
	MaxChoices         int            `xml:"maxChoices,attr"`
	Choices            []simpleChoice `xml:"simpleChoice"`
}
type simpleChoice struct {
	Identifier string `xml:"identifier,attr"`
	Text       string `xml:",chardata"`
}
type textEntryBlock struct {
	ResponseIdentifier string `xml:"responseIdentifier,attr"`
}
type extendedTextBody struct {
	ResponseIdentifier string `xml:"responseIdentifier,attr"`
}
type modalFeedback struct {
	OutcomeIdentifier string `xml:"outcomeIdentifier,attr"`
	Identifier        string `xml:"identifier,attr"`
	ShowHide          string `xml:"showHide,attr"`
	Text              string `xml:",chardata"`
}

var letters = regexp.MustCompile(`^[A-Za-z](\s*[,、]?\s*[A-Za-z])*$`)

func buildItemXML(id string, q question.Question) ([]byte, error) {
	item := assessmentItem{
		Xmlns:      qtiNS,
		Identifier: id,
		Title:      q.Title,
		Body:       itemBody{Prompt: q.Content},
	}
	if q.Explanation != "" && q.Explanation != question.NoExplanation {
		item.Feedback = &modalFeedback{OutcomeIdentifier: "FEEDBACK", Identifier: "EXPLANATION", ShowHide: "show", Text: q.Explanation}
	}
	answer := q.CorrectAnswer
	if answer == question.NoAnswer {
		answer = ""
	}

	switch {
	case q.Type == question.TypeChoice && len(q.Options) > 0:
		cb := &choiceBlock{ResponseIdentifier: "RESPONSE", MaxChoices: 1}
		for i, o := range q.Options {
			cb.Choices = append(cb.Choices, simpleChoice{Identifier: choiceID(i), Text: o})
		}
		rd := &responseDeclaration{Identifier: "RESPONSE", Cardinality: "single", BaseType: "identifier"}
		var correct []string
		if letters.MatchString(answer) {
			for _, r := range strings.ToUpper(answer) {
				if r >= 'A' && r <= 'Z' && int(r-'A') < len(q.Options) {
					correct = append(correct, choiceID(int(r-'A')))
				}
			}
		}
		if len(correct) > 0 {
			rd.Correct = &correctResponse{Values: correct}
		}
		if len(correct) > 1 {
			rd.Cardinality = "multiple"
			cb.MaxChoices = 0
		}
		item.Response = rd
		item.Body.Choice = cb
	case q.Type == question.TypeFill:
		item.Response = &responseDeclaration{Identifier: "RESPONSE", Cardinality: "single", BaseType: "string"}
		if answer != "" {
			item.Response.Correct = &correctResponse{Values: []string{answer}}
		}
		item.Body.Text = &textEntryBlock{ResponseIdentifier: "RESPONSE"}
	default: // essay, calculation
		item.Response = &responseDeclaration{Identifier: "RESPONSE", Cardinality: "single", BaseType: "string"}
		if answer != "" {
			item.Response.Correct = &correctResponse{Values: []string{answer}}
		}
		item.Body.Extended = &extendedTextBody{ResponseIdentifier: "RESPONSE"}
	}

	b, err := xml.MarshalIndent(item, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), b...), nil
}

func choiceID(i int) string { return fmt.Sprintf("choice_%c", 'A'+i) }

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// itemIdentifier makes a valid XML identifier from a question id.
func itemIdentifier(id string, i int) string {
	s := unsafeID.ReplaceAllString(id, "_")
	if s == "" {
		s = fmt.Sprintf("item_%d", i+1)
	}
	if c := s[0]; !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_') {
		s = "q_" + s
	}
	return s
}
