// Package merge applies offline patches to cached JSON documents.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Policy merges patch into current; both must be JSON objects.
type Policy interface {
	Merge(current, patch json.RawMessage) (json.RawMessage, error)
}

const (
	NameShallow = "shallow"
	NameDeep    = "deep"
)

// ByName resolves a configured policy name; "" selects LastWriteWins.
func ByName(name string) (Policy, error) {
	switch name {
	case "", NameShallow, "lww":
		return LastWriteWins{}, nil
	case NameDeep:
		return Deep{}, nil
	default:
		return nil, fmt.Errorf("unknown merge policy %q", name)
	}
}

// LastWriteWins replaces top-level fields of current with those in patch,
// keeping explicit nulls.
type LastWriteWins struct{}

func (LastWriteWins) Merge(current, patch json.RawMessage) (json.RawMessage, error) {
	dst, err := object(current)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}
	src, err := object(patch)
	if err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	for k, v := range src {
		dst[k] = v
	}
	return json.Marshal(dst)
}

// Deep merges nested objects recursively; a null in patch removes the field
// (JSON merge patch semantics).
type Deep struct{}

func (Deep) Merge(current, patch json.RawMessage) (json.RawMessage, error) {
	dst, err := object(current)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}
	src, err := object(patch)
	if err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	merged, err := deepMerge(dst, src)
	if err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

func deepMerge(dst, src map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	for k, v := range src {
		if isNull(v) {
			delete(dst, k)
			continue
		}
		cur, ok := dst[k]
		if ok && isObject(cur) && isObject(v) {
			a, err := object(cur)
			if err != nil {
				return nil, err
			}
			b, err := object(v)
			if err != nil {
				return nil, err
			}
			m, err := deepMerge(a, b)
			if err != nil {
				return nil, err
			}
			raw, err := json.Marshal(m)
			if err != nil {
				return nil, err
			}
			dst[k] = raw
			continue
		}
		dst[k] = v
	}
	return dst, nil
}

func object(raw json.RawMessage) (map[string]json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(raw)) == 0 || isNull(raw) {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return m, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}
