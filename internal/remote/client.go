// Package remote talks to a paper/question service over its JSON API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/question"
)

type Config struct {
	BaseURL string
	// Static bearer token; ignored when TokenURL is set.
	Token string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout time.Duration
}

type Client struct {
	base string
	http *http.Client
}

// Error is a failed call: a non-2xx status or an envelope with success=false.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

func New(cfg Config) *Client {
	var h *http.Client
	switch {
	case cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		h = cc.Client(context.Background())
	case cfg.Token != "":
		h = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	default:
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	} else {
		h.Timeout = 30 * time.Second
	}
	return &Client{base: strings.TrimRight(cfg.BaseURL, "/"), http: h}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// do sends body as JSON and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return &Error{Op: op, Status: res.StatusCode, Message: err.Error()}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = res.Status
		}
		return &Error{Op: op, Status: res.StatusCode, Message: msg}
	}
	if res.StatusCode/100 != 2 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = res.Status
		}
		return &Error{Op: op, Status: res.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return nil
}

// ---- paper service ----

func (c *Client) Create(ctx context.Context, f paper.CreateFields) (int64, error) {
	var out struct {
		PaperID int64 `json:"paper_id"`
	}
	if err := c.do(ctx, "create paper", http.MethodPost, "/api/papers", f, &out); err != nil {
		return 0, err
	}
	return out.PaperID, nil
}

func (c *Client) Publish(ctx context.Context, paperID int64) error {
	return c.do(ctx, "publish paper", http.MethodPost, fmt.Sprintf("/api/papers/%d/publish", paperID), nil, nil)
}

func (c *Client) List(ctx context.Context, teacherID int64) ([]paper.Summary, error) {
	var out struct {
		Papers []paper.Summary `json:"papers"`
	}
	path := "/api/papers?" + url.Values{"teacher_id": {strconv.FormatInt(teacherID, 10)}}.Encode()
	if err := c.do(ctx, "list papers", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Papers, nil
}

func (c *Client) Get(ctx context.Context, paperID int64) (paper.Paper, error) {
	var out struct {
		Paper paper.Paper `json:"paper"`
	}
	if err := c.do(ctx, "get paper", http.MethodGet, fmt.Sprintf("/api/papers/%d", paperID), nil, &out); err != nil {
		return paper.Paper{}, err
	}
	return out.Paper, nil
}

func (c *Client) Delete(ctx context.Context, paperID int64) error {
	return c.do(ctx, "delete paper", http.MethodDelete, fmt.Sprintf("/api/papers/%d", paperID), nil, nil)
}

// ---- question service ----

func (c *Client) BulkSave(ctx context.Context, qs []question.Question, createdBy int64) ([]int64, error) {
	body := map[string]any{"questions": qs, "created_by": createdBy}
	var out struct {
		QuestionIDs []int64 `json:"question_ids"`
	}
	if err := c.do(ctx, "save questions", http.MethodPost, "/api/save-questions", body, &out); err != nil {
		return nil, err
	}
	if len(out.QuestionIDs) != len(qs) {
		return nil, &Error{Op: "save questions", Message: fmt.Sprintf("expected %d ids, got %d", len(qs), len(out.QuestionIDs))}
	}
	return out.QuestionIDs, nil
}

func (c *Client) Attach(ctx context.Context, paperID, questionID int64, score float64) error {
	body := map[string]any{"question_id": questionID, "score": score}
	return c.do(ctx, "attach question", http.MethodPost, fmt.Sprintf("/api/papers/%d/questions", paperID), body, nil)
}
