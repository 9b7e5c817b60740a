package setlist

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Optional distinguishes the three patch-payload states JSON pointers cannot:
// key absent (Set=false), key present with null (Set=true, Valid=false), and
// key present with a value (Set=true, Valid=true).
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// intArg coerces a raw JSON value to an int. Accepts a number or a numeric
// string; anything else is the caller's validation error.
func intArg(raw json.RawMessage) (int, bool) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// isNullArg reports whether a present raw JSON value is null or an empty
// string, which patch semantics treat as an explicit clear.
func isNullArg(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "null" || s == `""`
}
