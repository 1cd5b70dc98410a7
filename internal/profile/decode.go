package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotAList = errors.New("users_data must be a list")

// DecodeUsers decodes a JSON array of user records. Missing text fields
// decode as empty; a missing or null id is an error.
func DecodeUsers(data json.RawMessage) ([]User, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotAList
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, ErrNotAList
	}

	users := make([]User, 0, len(records))
	for i, record := range records {
		user, err := decodeUser(record)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		users = append(users, user)
	}

	return users, nil
}

func decodeUser(record json.RawMessage) (User, error) {
	record = bytes.TrimSpace(record)
	if len(record) == 0 || record[0] != '{' {
		return User{}, errors.New("not an object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return User{}, errors.New("not an object")
	}

	var user User

	rawID, ok := fields["id"]
	if !ok {
		return User{}, ErrMissingID
	}
	if err := json.Unmarshal(rawID, &user.ID); err != nil {
		return User{}, err
	}
	if user.ID.IsZero() {
		return User{}, ErrMissingID
	}

	texts := []struct {
		name string
		dst  *Text
	}{
		{"bio", &user.Bio},
		{"interests", &user.Interests},
		{"occupation", &user.Occupation},
	}
	for _, f := range texts {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return User{}, fmt.Errorf("%s %w", f.name, err)
		}
	}

	return user, nil
}
