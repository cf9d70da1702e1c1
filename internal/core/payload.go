package core

import (
	"math"
	"time"

	"github.com/JonMunkholm/decisio/internal/backend"
)

// EncodePayload converts the first rowLimit rows of t into the JSON-safe
// body sent to the backend. Headers and rows keep their original order.
// Missing cells (see IsMissing) become nil; all other cells pass through.
//
// rowLimit must be non-negative. The operator-facing range is enforced by
// Service.Analyze, not here.
func EncodePayload(t *Table, rowLimit int) (backend.Payload, error) {
	if rowLimit < 0 {
		return backend.Payload{}, &InvalidLimitError{Limit: rowLimit, Min: 0}
	}
	if t == nil {
		return backend.Payload{Headers: []string{}, Data: [][]any{}}, nil
	}

	headers := make([]string, len(t.Headers))
	copy(headers, t.Headers)

	n := min(rowLimit, len(t.Rows))
	data := make([][]any, n)
	for i := 0; i < n; i++ {
		src := t.Rows[i]
		row := make([]any, len(headers))
		for j := range row {
			if j < len(src) && !IsMissing(src[j]) {
				row[j] = src[j]
			}
		}
		data[i] = row
	}

	return backend.Payload{Headers: headers, Data: data}, nil
}

// IsMissing reports whether a cell cannot be represented in JSON and must be
// sent as null: nil, NaN or infinite floats, and zero times.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x) || math.IsInf(x, 0)
	case float32:
		f := float64(x)
		return math.IsNaN(f) || math.IsInf(f, 0)
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}
