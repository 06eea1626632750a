package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON accepts both the object form and the positional
// ["field", "operator", value] form.
func (f *FilterTerm) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) != 3 {
			return fmt.Errorf("filter term needs 3 elements, got %d", len(parts))
		}
		if err := json.Unmarshal(parts[0], &f.Field); err != nil {
			return fmt.Errorf("filter field: %w", err)
		}
		if err := json.Unmarshal(parts[1], &f.Operator); err != nil {
			return fmt.Errorf("filter operator: %w", err)
		}
		return json.Unmarshal(parts[2], &f.Value)
	}
	type plain FilterTerm
	return json.Unmarshal(data, (*plain)(f))
}

// UnmarshalJSON accepts both the object form and the positional
// ["field", "ASC|DESC"] form.
func (s *SortPair) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) != 2 {
			return fmt.Errorf("sort pair needs 2 elements, got %d", len(parts))
		}
		s.Field, s.Direction = parts[0], parts[1]
		return nil
	}
	type plain SortPair
	return json.Unmarshal(data, (*plain)(s))
}
