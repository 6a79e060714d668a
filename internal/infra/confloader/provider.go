package confloader

import "errors"

// errReadBytesNotSupported is returned by mapProvider.ReadBytes.
var errReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over a map keyed by dotted path. Keys
// are unflattened by koanf when loaded without a parser.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		setPath(out, k, v)
	}
	return out, nil
}

func setPath(m map[string]any, key string, v any) {
	for {
		i := indexDot(key)
		if i < 0 {
			m[key] = v
			return
		}
		next, ok := m[key[:i]].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key[:i]] = next
		}
		m, key = next, key[i+1:]
	}
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
