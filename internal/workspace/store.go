package workspace

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

var ErrDuplicateID = errors.New("duplicate question id in view")

// Store holds the working set of questions as their rendered view. The view
// is the only state: every read re-derives the questions from it, because
// authors may edit the view directly.
type Store struct {
	mu   sync.Mutex
	view []byte
}

func New() *Store { return &Store{} }

// FromView wraps a previously rendered view. The view must parse and carry
// unique question ids.
func FromView(view []byte) (*Store, error) {
	s := &Store{}
	if err := s.Adopt(view); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the contents with the normalized drafts, in order.
func (s *Store) Load(drafts []question.Draft, c question.Context) []question.Question {
	if c.IDPrefix == "" {
		c.IDPrefix = newIDPrefix()
	}
	qs := question.NormalizeAll(drafts, c)
	seen := make(map[string]struct{}, len(qs))
	for i := range qs {
		qs[i].ID = uniqueID(qs[i].ID, seen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(qs)
	return qs
}

// Add normalizes one draft and appends it.
func (s *Store) Add(d question.Draft, c question.Context) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := Extract(s.view)
	if err != nil {
		return question.Question{}, err
	}
	if c.IDPrefix == "" {
		c.IDPrefix = newIDPrefix()
	}
	c.Index = len(qs)
	q := question.Normalize(d, c)

	seen := make(map[string]struct{}, len(qs)+1)
	for _, existing := range qs {
		seen[existing.ID] = struct{}{}
	}
	q.ID = uniqueID(q.ID, seen)
	s.setLocked(append(qs, q))
	return q, nil
}

// Remove drops the question with the given id. Removing an unknown id is a
// no-op.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := Extract(s.view)
	if err != nil {
		return false, err
	}
	kept := qs[:0]
	removed := false
	for _, q := range qs {
		if q.ID == id {
			removed = true
			continue
		}
		kept = append(kept, q)
	}
	if removed {
		s.setLocked(kept)
	}
	return removed, nil
}

// Snapshot returns the questions currently shown in the view.
func (s *Store) Snapshot() ([]question.Question, error) {
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()
	return Extract(view)
}

// View returns a copy of the rendered view.
func (s *Store) View() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.view...)
}

// Adopt replaces the view with one edited outside the store. The adopted
// view is re-rendered so numbering and markup stay canonical.
func (s *Store) Adopt(view []byte) error {
	qs, err := Extract(view)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(qs)
	return nil
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = nil
}

func (s *Store) Len() int {
	qs, err := s.Snapshot()
	if err != nil {
		return 0
	}
	return len(qs)
}

func (s *Store) setLocked(qs []question.Question) {
	if len(qs) == 0 {
		s.view = nil
		return
	}
	view, err := Render(qs)
	if err != nil {
		// bytes.Buffer writes cannot fail
		panic(err)
	}
	s.view = view
}

func uniqueID(id string, seen map[string]struct{}) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
}

func newIDPrefix() string {
	return "q_" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
