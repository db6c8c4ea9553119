// Package pattern implements a small subset of trollsift's "{field[:format]}"
// templating: turning an origin_pattern into a matcher plus a field
// extractor, and composing a path back out of a metadata map.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package pattern

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// field is one {name[:fmt]} placeholder found in a template, in order of
// appearance.
type field struct {
	name string
	spec string // format spec after the colon, e.g. "%Y%m%d", "05d", ""
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(:[^}]*)?\}`)

// Globify turns a trollsift template into a shell glob, replacing every
// placeholder with "*" — used to feed filepath.Match / fsnotify filtering.
func Globify(tmpl string) string {
	return placeholderRe.ReplaceAllString(tmpl, "*")
}

func fields(tmpl string) []field {
	matches := placeholderRe.FindAllStringSubmatch(tmpl, -1)
	out := make([]field, 0, len(matches))
	for _, m := range matches {
		spec := strings.TrimPrefix(m[2], ":")
		out = append(out, field{name: m[1], spec: spec})
	}
	return out
}

// Parse extracts the placeholder values out of name according to tmpl, the
// way trollsift.parse does, and reports whether name actually matches the
// template's literal segments.
func Parse(tmpl, name string) (map[string]any, bool) {
	fs := fields(tmpl)
	rx := templateRegexp(tmpl, fs)
	m := rx.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	out := make(map[string]any, len(fs))
	for i, f := range fs {
		raw := m[i+1]
		out[f.name] = convert(raw, f.spec)
	}
	return out, true
}

// templateRegexp builds a capturing regexp out of tmpl's literal segments
// and per-field capture groups sized by the field's format spec when one
// implies a fixed width (e.g. "%Y%m%d" or "04d").
func templateRegexp(tmpl string, fs []field) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteByte('^')
	last := 0
	idx := 0
	for _, loc := range placeholderRe.FindAllStringIndex(tmpl, -1) {
		sb.WriteString(regexp.QuoteMeta(tmpl[last:loc[0]]))
		sb.WriteString(captureFor(fs[idx]))
		last = loc[1]
		idx++
	}
	sb.WriteString(regexp.QuoteMeta(tmpl[last:]))
	sb.WriteByte('$')
	return regexp.MustCompile(sb.String())
}

func captureFor(f field) string {
	if n := strftimeWidth(f.spec); n > 0 {
		return fmt.Sprintf("([0-9]{%d})", n)
	}
	if w, ok := printfWidth(f.spec); ok {
		return fmt.Sprintf("([0-9]{%d})", w)
	}
	if f.spec == "" {
		return `([^/]+?)`
	}
	return `([^/]+?)`
}

// strftimeWidth sums the fixed digit width implied by a %Y%m%d-style
// datetime format spec, or 0 if spec doesn't look like one.
func strftimeWidth(spec string) int {
	widths := map[byte]int{'Y': 4, 'y': 2, 'm': 2, 'd': 2, 'H': 2, 'M': 2, 'S': 2, 'j': 3}
	total := 0
	i := 0
	found := false
	for i < len(spec) {
		if spec[i] == '%' && i+1 < len(spec) {
			if w, ok := widths[spec[i+1]]; ok {
				total += w
				i += 2
				found = true
				continue
			}
		}
		total++ // literal separator character between datetime fields
		i++
	}
	if !found {
		return 0
	}
	return total
}

// printfWidth recognizes a bare width+type spec like "05d" or "3d".
func printfWidth(spec string) (int, bool) {
	if spec == "" || spec[len(spec)-1] != 'd' {
		return 0, false
	}
	digits := strings.TrimSuffix(spec, "d")
	digits = strings.TrimPrefix(digits, "0")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func convert(raw, spec string) any {
	if strftimeWidth(spec) > 0 {
		return raw // datetime fields are surfaced as their raw digit string
	}
	if _, ok := printfWidth(spec); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return raw
}

// Compose substitutes {field[:format]} placeholders in tmpl with values
// from mda, formatting integers per a printf-style width spec and leaving
// other values as fmt.Sprint.
func Compose(tmpl string, mda map[string]any) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(ph string) string {
		m := placeholderRe.FindStringSubmatch(ph)
		name, spec := m[1], strings.TrimPrefix(m[2], ":")
		v, ok := mda[name]
		if !ok {
			missing = name
			return ph
		}
		return formatValue(v, spec)
	})
	if missing != "" {
		return "", fmt.Errorf("pattern: compose: missing field %q in %q", missing, tmpl)
	}
	return filepath.Clean(out), nil
}

func formatValue(v any, spec string) string {
	if w, ok := printfWidth(spec); ok {
		switch n := v.(type) {
		case int:
			return fmt.Sprintf("%0*d", w, n)
		case string:
			if iv, err := strconv.Atoi(n); err == nil {
				return fmt.Sprintf("%0*d", w, iv)
			}
		}
	}
	return fmt.Sprint(v)
}
