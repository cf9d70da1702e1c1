package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the tabular body forwarded to the backend under "data".
// Every row has len(Headers) values, each a string, number, bool or nil.
type Payload struct {
	Headers []string `json:"headers"`
	Data    [][]any  `json:"data"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	ConversationID string  `json:"conversationId"`
	Message        string  `json:"message"`
	Data           Payload `json:"data"`
}

// HealthReport is the decoded body of GET /health. Its shape is backend-defined.
type HealthReport map[string]any

// AnalyzeResponse is the decoded body of POST /analyze.
// All fields are optional; a missing result decodes to the zero Result.
type AnalyzeResponse struct {
	ConversationID string `json:"conversationId,omitempty"`
	Result         Result `json:"result"`

	// Raw is the response body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Result holds the structured fields the console renders.
type Result struct {
	Answer        string   `json:"answer,omitempty"`
	Risks         []string `json:"risks,omitempty"`
	Score         any      `json:"score,omitempty"`
	NextQuestions []string `json:"nextQuestions,omitempty"`
}

// HasScore reports whether the backend sent a non-null score.
func (r Result) HasScore() bool {
	return r.Score != nil
}

// UnmarshalJSON decodes a result leniently. Unknown shapes never fail:
// non-string answers and list items are kept as compact JSON text, and
// non-list risks or nextQuestions decode to nil.
func (r *Result) UnmarshalJSON(b []byte) error {
	*r = Result{}
	if isNull(b) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("result is not an object: %w", err)
	}

	r.Answer = textOf(fields["answer"])
	r.Risks = textList(fields["risks"])
	r.NextQuestions = textList(fields["nextQuestions"])

	if raw, ok := fields["score"]; ok && !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var score any
		if err := dec.Decode(&score); err == nil {
			r.Score = score
		}
	}

	return nil
}

// UnmarshalJSON accepts null as an empty response.
func (r *AnalyzeResponse) UnmarshalJSON(b []byte) error {
	raw := append(json.RawMessage(nil), b...)
	*r = AnalyzeResponse{Raw: raw}
	if isNull(b) {
		return nil
	}

	var body struct {
		ConversationID json.RawMessage `json:"conversationId"`
		Result         Result          `json:"result"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return err
	}

	r.ConversationID = textOf(body.ConversationID)
	r.Result = body.Result
	return nil
}

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// textOf renders a JSON value as display text: strings unquoted,
// everything else compacted.
func textOf(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func textList(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, textOf(item))
	}
	return out
}
