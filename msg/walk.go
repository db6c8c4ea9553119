package msg

// Extract walks a nested map/list tree and returns every value found under
// the given key, at any depth — the generic replacement for the original's
// gen_dict_extract.
func Extract(tree any, key string) []any {
	var out []any
	walk(tree, func(k string, v any) {
		if k == key {
			out = append(out, v)
		}
	})
	return out
}

// Contains reports whether key appears anywhere in the tree — replaces
// gen_dict_contains.
func Contains(tree any, key string) bool {
	found := false
	walk(tree, func(k string, _ any) {
		if k == key {
			found = true
		}
	})
	return found
}

// Translate rewrites every value found under key using fn, returning a new
// tree with those substitutions applied. Every map and list in the tree is
// copied; other values are carried over as they are — replaces
// translate_dict.
func Translate(tree any, key string, fn func(any) any) any {
	switch t := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if k == key {
				out[k] = fn(v)
			} else {
				out[k] = Translate(v, key, fn)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = Translate(v, key, fn)
		}
		return out
	default:
		return tree
	}
}

func walk(tree any, visit func(key string, val any)) {
	switch t := tree.(type) {
	case map[string]any:
		for k, v := range t {
			visit(k, v)
			walk(v, visit)
		}
	case []any:
		for _, v := range t {
			walk(v, visit)
		}
	}
}
