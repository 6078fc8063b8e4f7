package rules

// RuleSet is a named collection of rule definitions, as stored in one
// rule-set JSON file.
type RuleSet struct {
	Name     string  `json:"name"`
	FileName string  `json:"file_name,omitempty"`
	Rules    []*Rule `json:"rules"`
}

// Validate checks every rule in the set.
func (rs *RuleSet) Validate() error {
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
