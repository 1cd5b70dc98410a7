package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	ErrMissingID   = errors.New("missing id")
	ErrInvalidID   = errors.New("id must be a string or a number")
	ErrInvalidText = errors.New("must be a string, a number, a boolean or a list of those")
)

// ID identifies a user. Numbers compare by value, strings byte-wise, and a
// number never equals a string. The zero ID equals nothing.
type ID struct {
	raw json.RawMessage
	key string
}

func StringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: raw, key: "s:" + s}
}

func IntID(n int64) ID {
	s := strconv.FormatInt(n, 10)
	return ID{raw: json.RawMessage(s), key: "n:" + s}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidID
		}
		id.key = "s:" + s
	case c == '-' || (c >= '0' && c <= '9'):
		key, err := numberKey(string(data))
		if err != nil {
			return ErrInvalidID
		}
		id.key = key
	default:
		return ErrInvalidID
	}

	id.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id ID) IsZero() bool {
	return id.key == ""
}

func (id ID) Equal(other ID) bool {
	return id.key != "" && id.key == other.key
}

func (id ID) String() string {
	if strings.HasPrefix(id.key, "s:") {
		return id.key[2:]
	}
	return string(id.raw)
}

// numberKey canonicalizes a JSON number so that 1, 1.0 and 1e0 share a key.
func numberKey(s string) (string, error) {
	if !strings.ContainsAny(s, ".eE") {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return "", ErrInvalidID
		}
		return "n:" + n.String(), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", err
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return "n:" + strconv.FormatInt(int64(f), 10), nil
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Text is a loosely typed profile field. Lists are joined with ", ".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidText
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return ErrInvalidText
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, err := scalarText(item)
			if err != nil {
				return err
			}
			parts = append(parts, s)
		}
		*t = Text(strings.Join(parts, ", "))
		return nil
	}

	s, err := scalarText(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

func scalarText(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", ErrInvalidText
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", ErrInvalidText
		}
		return s, nil
	case c == 'n':
		return "", nil
	case c == 't' || c == 'f' || c == '-' || (c >= '0' && c <= '9'):
		return string(data), nil
	default:
		return "", ErrInvalidText
	}
}

// User is one profile as supplied by the caller.
type User struct {
	ID         ID   `json:"id"`
	Bio        Text `json:"bio"`
	Interests  Text `json:"interests"`
	Occupation Text `json:"occupation"`
}

// RecordError points at the malformed entry of a users list.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
