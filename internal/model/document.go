package model

import (
	"encoding/json"
	"fmt"
)

// ToDocument converts a typed value into the generic map shape stored by the document store.
func ToDocument(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

// FromDocument decodes a stored document into dst.
func FromDocument(data map[string]interface{}, dst interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
