package storage

import (
	"context"
	"testing"

	"github.com/pmaring/ruletick/pkg/rules"
)

func TestMockStorage_RuleSetsMapNameToFilename(t *testing.T) {
	mock := NewMockStorage()
	ctx := context.Background()

	list := []*rules.Rule{{ID: "fog-rolls-in"}}
	mock.AddRuleSet("harbor_nights.json", "Harbor Nights", list)

	listed, err := mock.ListRuleSets(ctx)
	if err != nil {
		t.Fatalf("Failed to list rule sets: %v", err)
	}
	if listed["Harbor Nights"] != "harbor_nights.json" {
		t.Errorf("Expected Harbor Nights -> harbor_nights.json, got %v", listed)
	}

	loaded, err := mock.GetRuleSet(ctx, "harbor_nights.json")
	if err != nil {
		t.Fatalf("Failed to load rule set: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "fog-rolls-in" {
		t.Errorf("Unexpected rules: %+v", loaded)
	}

	if _, err := mock.GetRuleSet(ctx, "missing.json"); err == nil {
		t.Error("Expected error for missing rule set")
	}
}
