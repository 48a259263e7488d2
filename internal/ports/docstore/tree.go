package docstore

import (
	"bytes"
	"encoding/json"
)

// normalize turns any JSON-encodable value into the generic tree form
// (maps, slices, json.Number, strings, bools) with empty maps removed.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok && len(raw) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeTree(b)
}

func decodeTree(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return prune(out), nil
}

func encodeTree(node any) ([]byte, error) {
	if node == nil {
		return nil, nil
	}
	return json.Marshal(node)
}

// prune drops nulls and empty maps, bottom up.
func prune(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	for k, v := range m {
		if c := prune(v); c == nil {
			delete(m, k)
		} else {
			m[k] = c
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func getNode(root any, segs []string) (any, bool) {
	node := root
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[s]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// setNode returns root with value placed at segs. Scalars found on the way
// are replaced by maps. The result is pruned.
func setNode(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return prune(value)
	}
	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = map[string]any{}
	}
	m[segs[0]] = setNode(m[segs[0]], segs[1:], value)
	return prune(m)
}
