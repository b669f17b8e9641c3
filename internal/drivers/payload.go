package drivers

// payloadString digs a string value out of a decoded JSON payload by key
// path. The second return is false when any segment is missing or the leaf
// is not a non-empty string.
func payloadString(payload map[string]any, path ...string) (string, bool) {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[key]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// payloadList digs a JSON array out of a decoded payload by key path.
func payloadList(payload map[string]any, path ...string) ([]any, bool) {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	list, ok := current.([]any)
	return list, ok
}

// payloadFirstString tries several key paths in order and returns the first
// hit.
func payloadFirstString(payload map[string]any, paths ...[]string) (string, bool) {
	for _, path := range paths {
		if v, ok := payloadString(payload, path...); ok {
			return v, true
		}
	}
	return "", false
}
