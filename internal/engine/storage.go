package engine

import "fmt"

// StorageKind selects between the two DOM storage areas.
type StorageKind string

const (
	StorageLocal   StorageKind = "local"
	StorageSession StorageKind = "session"
)

func (k StorageKind) jsName() string {
	if k == StorageSession {
		return "sessionStorage"
	}
	return "localStorage"
}

// storageDumpScript returns an IIFE that serializes a storage area to a
// plain object.
func storageDumpScript(kind StorageKind) string {
	return fmt.Sprintf(`(() => {
	const store = window.%s;
	const result = {};
	for (let i = 0; i < store.length; i++) {
		const k = store.key(i);
		if (k !== null) {
			const v = store.getItem(k);
			if (v !== null) {
				result[k] = v;
			}
		}
	}
	return result;
})()`, kind.jsName())
}

// storageSetScript returns an IIFE that writes one key and yields true, so
// evaluation never produces undefined.
func storageSetScript(kind StorageKind, key, value string) string {
	return fmt.Sprintf(`(() => { window.%s.setItem(%q, %q); return true; })()`, kind.jsName(), key, value)
}

// toStringMap converts an evaluated storage dump into a string map,
// discarding anything that is not a string value.
func toStringMap(v any) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range m {
		if s, ok := raw.(string); ok {
			out[k] = s
		}
	}
	return out
}
