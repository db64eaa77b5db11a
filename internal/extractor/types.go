package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is substituted for a field the model did not return.
const NotAvailable = "N/A"

// Field names, exactly as requested from and read back from the model.
const (
	FieldGoals       = "goals"
	FieldCommitments = "commitments"
	FieldRisks       = "risks"
	FieldTechStack   = "tech_stack"
)

// Fields lists the extracted fields in display order.
var Fields = []string{FieldGoals, FieldCommitments, FieldRisks, FieldTechStack}

// ErrInvalidInput is returned without any backend call when text or credential is empty.
var ErrInvalidInput = errors.New("invalid extraction input")

// Value is either plain text or an ordered list of short phrases.
type Value struct {
	Text  string
	Items []string
	List  bool
}

func TextValue(s string) Value { return Value{Text: s} }

func ListValue(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Items: items, List: true}
}

// String renders the value for display, joining list items with ", ".
func (v Value) String() string {
	if v.List {
		return strings.Join(v.Items, ", ")
	}
	return v.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.List {
		items := v.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON reads back what MarshalJSON writes. A null value becomes
// NotAvailable and null list elements are dropped, as in normalization.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = TextValue(NotAvailable)
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []*string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode list value: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			if item != nil {
				items = append(items, *item)
			}
		}
		*v = ListValue(items...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode text value: %w", err)
	}
	*v = TextValue(s)
	return nil
}

// Record is the normalized four-field handover.
type Record struct {
	Goals       Value `json:"goals"`
	Commitments Value `json:"commitments"`
	Risks       Value `json:"risks"`
	TechStack   Value `json:"tech_stack"`
}

// Get returns the value stored under a field name.
func (r Record) Get(field string) (Value, bool) {
	switch field {
	case FieldGoals:
		return r.Goals, true
	case FieldCommitments:
		return r.Commitments, true
	case FieldRisks:
		return r.Risks, true
	case FieldTechStack:
		return r.TechStack, true
	}
	return Value{}, false
}

func (r *Record) set(field string, v Value) {
	switch field {
	case FieldGoals:
		r.Goals = v
	case FieldCommitments:
		r.Commitments = v
	case FieldRisks:
		r.Risks = v
	case FieldTechStack:
		r.TechStack = v
	}
}

// CandidateFailure is why one backend candidate did not produce a record.
type CandidateFailure struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// ExhaustedError reports that every candidate failed. Failures are in candidate order.
type ExhaustedError struct {
	Failures []CandidateFailure
}

// Latest returns the most recent failure, which is usually the most informative.
func (e *ExhaustedError) Latest() CandidateFailure {
	if len(e.Failures) == 0 {
		return CandidateFailure{}
	}
	return e.Failures[len(e.Failures)-1]
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "all candidates exhausted: no candidates configured"
	}
	var b strings.Builder
	latest := e.Latest()
	fmt.Fprintf(&b, "all %d candidates exhausted: %s: %s", len(e.Failures), latest.Model, latest.Reason)
	for i := len(e.Failures) - 2; i >= 0; i-- {
		fmt.Fprintf(&b, "; %s: %s", e.Failures[i].Model, e.Failures[i].Reason)
	}
	return b.String()
}

// Outcome is the terminal result of one extraction: a record and the model
// that produced it, or an error (ErrInvalidInput or *ExhaustedError).
type Outcome struct {
	Record    Record
	ModelUsed string
	Failures  []CandidateFailure
	Err       error
}

func (o Outcome) OK() bool { return o.Err == nil }
