package dispatch

import (
	"testing"

	"github.com/aistore/movefabric/config"
)

func TestTopicMatchesPrefix(t *testing.T) {
	if !topicMatches("/H/uid1", []string{"/H"}) {
		t.Error("expected /H/uid1 to match prefix /H")
	}
	if topicMatches("/G/uid1", []string{"/H"}) {
		t.Error("expected /G/uid1 not to match prefix /H")
	}
}

func TestConditionsMatchEmptyAlwaysTrue(t *testing.T) {
	if !conditionsMatch(nil, map[string]any{}) {
		t.Error("expected no conditions to always match")
	}
}

func TestConditionsMatchListMembership(t *testing.T) {
	sets := []config.ConditionSet{{Conditions: map[string]any{"platform": []any{"n18", "n19"}}}}
	if !conditionsMatch(sets, map[string]any{"platform": "n19"}) {
		t.Error("expected membership match")
	}
	if conditionsMatch(sets, map[string]any{"platform": "metop-a"}) {
		t.Error("expected no match outside the list")
	}
}

func TestConditionsMatchNumericComparison(t *testing.T) {
	sets := []config.ConditionSet{{Conditions: map[string]any{"orbit": "<100"}}}
	if !conditionsMatch(sets, map[string]any{"orbit": float64(42)}) {
		t.Error("expected 42 < 100 to match")
	}
	if conditionsMatch(sets, map[string]any{"orbit": float64(142)}) {
		t.Error("expected 142 < 100 to fail")
	}
}

func TestConditionsMatchExceptNegates(t *testing.T) {
	sets := []config.ConditionSet{{
		Conditions: map[string]any{"platform": "n19"},
		Except:     map[string]any{"sensor": "iasi"},
	}}
	if !conditionsMatch(sets, map[string]any{"platform": "n19", "sensor": "avhrr"}) {
		t.Error("expected match when except sub-set does not match")
	}
	if conditionsMatch(sets, map[string]any{"platform": "n19", "sensor": "iasi"}) {
		t.Error("expected no match when except sub-set matches")
	}
}

func TestConditionsMatchMissingKeyFailsEvenUnderExcept(t *testing.T) {
	sets := []config.ConditionSet{{
		Conditions: map[string]any{"platform": "n19"},
		Except:     map[string]any{"sensor": "iasi"},
	}}
	if conditionsMatch(sets, map[string]any{"sensor": "iasi"}) {
		t.Error("expected missing 'platform' key to fail the whole set")
	}
}

func TestConditionsMatchMissingExceptKeyFailsSet(t *testing.T) {
	sets := []config.ConditionSet{{
		Conditions: map[string]any{"platform": "n19"},
		Except:     map[string]any{"sensor": "iasi"},
	}}
	if conditionsMatch(sets, map[string]any{"platform": "n19"}) {
		t.Error("expected missing 'sensor' key under except to fail the whole set")
	}
}
