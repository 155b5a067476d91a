package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const serverTimestampMarker = "\u0000server_timestamp\u0000"

type serverTimestamp struct{}

func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(serverTimestampMarker)
}

// ServerTimestamp is replaced with the store's clock when the write is applied.
func ServerTimestamp() interface{} {
	return serverTimestamp{}
}

// normalize turns an arbitrary Go value into its JSON shape and resolves server timestamps.
func normalize(v interface{}, now time.Time) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return resolveTimestamps(out, now), nil
}

func normalizeMap(m map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}
	v, err := normalize(m, now)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("document is not an object")
	}
	return out, nil
}

func resolveTimestamps(v interface{}, now time.Time) interface{} {
	switch t := v.(type) {
	case string:
		if t == serverTimestampMarker {
			return now.UTC().Format(time.RFC3339Nano)
		}
		return t
	case map[string]interface{}:
		for k, child := range t {
			t[k] = resolveTimestamps(child, now)
		}
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = resolveTimestamps(child, now)
		}
		return t
	}
	return v
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// GetPath reads a dotted path from a document body.
func GetPath(data map[string]interface{}, path string) (interface{}, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(data map[string]interface{}, path string, v interface{}) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

// applyPatch sets every field on data. Shorter paths are applied first so a
// parent replacement never wipes a more specific field of the same patch.
func applyPatch(data map[string]interface{}, fields map[string]interface{}) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if err := setPath(data, k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	out, err := normalizeMap(data, time.Time{})
	if err != nil {
		return map[string]interface{}{}
	}
	return out
}
