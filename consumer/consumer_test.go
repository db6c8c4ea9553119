package consumer

import "testing"

func TestApplyAliasesRewritesMappedValue(t *testing.T) {
	data := map[string]any{"platform": "n19"}
	aliases := map[string]map[string]string{"platform": {"n19": "noaa19"}}
	applyAliases(data, aliases, nil)
	if data["platform"] != "noaa19" {
		t.Errorf("platform = %v", data["platform"])
	}
}

func TestApplyAliasesHonorsAliasName(t *testing.T) {
	data := map[string]any{"platform": "n19"}
	aliases := map[string]map[string]string{"platform": {"n19": "noaa19"}}
	aliasName := map[string]string{"platform": "platform_name"}
	applyAliases(data, aliases, aliasName)
	if data["platform_name"] != "noaa19" {
		t.Errorf("platform_name = %v", data["platform_name"])
	}
	if data["platform"] != "n19" {
		t.Errorf("platform should be left alone, got %v", data["platform"])
	}
}

func TestApplyAliasesLeavesUnmappedValueAlone(t *testing.T) {
	data := map[string]any{"platform": "unknown-sat"}
	aliases := map[string]map[string]string{"platform": {"n19": "noaa19"}}
	applyAliases(data, aliases, nil)
	if data["platform"] != "unknown-sat" {
		t.Errorf("platform = %v", data["platform"])
	}
}
