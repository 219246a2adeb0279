package assembly

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidationError blocks a run before any remote call is issued.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// StepFailure records a failed create, bulk-save or publish call. The run
// still reaches StepFinalized.
type StepFailure struct {
	Step Step
	Err  error
}

func (f *StepFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", f.Step, f.Err)
}

func (f *StepFailure) Unwrap() error { return f.Err }

func (f *StepFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Step    Step   `json:"step"`
		Message string `json:"message"`
	}{f.Step, f.Err.Error()})
}

func (f *StepFailure) UnmarshalJSON(b []byte) error {
	var v struct {
		Step    Step   `json:"step"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Step, f.Err = v.Step, errors.New(v.Message)
	return nil
}
