// Command validate checks a rule-set JSON file for configuration errors
// before it ships: unknown action types, bad condition rows, malformed
// interval fields, duplicate rule IDs.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pmaring/ruletick/pkg/rules"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <rules.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &RuleSetValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Rule-set file is valid!")
}

type RuleSetValidator struct {
	errors []string
}

func (v *RuleSetValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("rule-set file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidRuleSetFilename(nameWithoutExt) {
		return fmt.Errorf("rule-set filename '%s' must be lowercase snake_case (e.g., night_watch.json, not NightWatch.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var rs rules.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("failed to unmarshal rule set: %w", err)
	}

	if rs.Name == "" {
		v.addError("rule set has no name")
	}
	if len(rs.Rules) == 0 {
		v.addError("rule set has no rules")
	}

	seen := make(map[string]bool)
	for i, r := range rs.Rules {
		if r.ID != "" && seen[r.ID] {
			v.addError(fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = true

		if err := r.Validate(); err != nil {
			v.addError(fmt.Sprintf("rule %d: %v", i, err))
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("%d error(s):\n  %s", len(v.errors), strings.Join(v.errors, "\n  "))
	}

	fmt.Printf("  %d rule(s) checked\n", len(rs.Rules))
	return nil
}

func (v *RuleSetValidator) addError(msg string) {
	v.errors = append(v.errors, msg)
}

var ruleSetFilenamePattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

func isValidRuleSetFilename(name string) bool {
	return ruleSetFilenamePattern.MatchString(name)
}
