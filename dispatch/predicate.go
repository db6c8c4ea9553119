// Package dispatch implements the dispatch predicate engine (C12): a
// subscriber that routes each incoming message to zero or more per-client
// destinations based on topic prefix and metadata conditions, composing
// each destination path and invoking the movers.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"strconv"
	"strings"

	"github.com/aistore/movefabric/config"
)

// topicMatches reports whether subject starts with any of topics.
func topicMatches(subject string, topics []string) bool {
	for _, t := range topics {
		if strings.HasPrefix(subject, t) {
			return true
		}
	}
	return false
}

// conditionsMatch reports whether any ConditionSet in sets matches data
// (logical OR); an empty sets list always matches, since conditions are
// optional.
func conditionsMatch(sets []config.ConditionSet, data map[string]any) bool {
	if len(sets) == 0 {
		return true
	}
	for _, s := range sets {
		if setMatches(s, data) {
			return true
		}
	}
	return false
}

func setMatches(s config.ConditionSet, data map[string]any) bool {
	switch allMatch(s.Conditions, data) {
	case matchAbsent, matchFail:
		return false
	}
	if len(s.Except) == 0 {
		return true
	}
	switch allMatch(s.Except, data) {
	case matchAbsent:
		// a key named under except but missing from data fails the
		// whole set, not just the except clause
		return false
	case matchOK:
		return false
	default:
		return true
	}
}

// matchOutcome distinguishes "every key present and satisfied" from
// "a key was present but didn't match" from "a key was missing
// entirely", so except clauses can fail the whole set on a missing key
// instead of treating it as the exception not applying.
type matchOutcome int

const (
	matchOK matchOutcome = iota
	matchFail
	matchAbsent
)

// allMatch requires every key in conds to be present in data and to
// satisfy its condition.
func allMatch(conds map[string]any, data map[string]any) matchOutcome {
	for key, want := range conds {
		v, ok := data[key]
		if !ok {
			return matchAbsent
		}
		if !valueMatches(want, v) {
			return matchFail
		}
	}
	return matchOK
}

func valueMatches(want, got any) bool {
	switch w := want.(type) {
	case []any:
		return membershipMatch(w, got)
	case string:
		if op, operand, ok := numericOp(w); ok {
			return numericCompare(op, operand, got)
		}
		return strValue(got) == w
	default:
		return strValue(got) == strValue(want)
	}
}

func membershipMatch(list []any, got any) bool {
	for _, v := range list {
		if strValue(v) == strValue(got) {
			return true
		}
	}
	return false
}

// numericOp splits a leading <, >, =, ! comparison operator off a string
// condition value, e.g. "<100" -> ("<", "100", true).
func numericOp(s string) (op, operand string, ok bool) {
	if s == "" {
		return "", "", false
	}
	switch s[0] {
	case '<', '>', '=', '!':
		return s[:1], s[1:], true
	default:
		return "", "", false
	}
}

func numericCompare(op, operand string, got any) bool {
	want, err := strconv.ParseFloat(operand, 64)
	if err != nil {
		return false
	}
	val, err := strconv.ParseFloat(strValue(got), 64)
	if err != nil {
		return false
	}
	switch op {
	case "<":
		return val < want
	case ">":
		return val > want
	case "=":
		return val == want
	case "!":
		return val != want
	default:
		return false
	}
}

func strValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
