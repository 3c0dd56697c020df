// Package filter decides which entities the collector records.
//
// An EntityFilter is an ordered list of rules naming exceptions to a DefaultFilter policy: with the allow policy
// every entity is recorded except those the rules match, with the deny policy only the entities the rules match
// are recorded.
package filter

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"

	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

// Rule matches entities of one kind, optionally narrowed by a pattern on the name portion of the entity id.
type Rule struct {
	Kind string
	Name *regexp.Regexp
}

// Matches reports whether kind equals the rule's kind and the name satisfies the rule's pattern, if any.
func (r Rule) Matches(kind, name string) bool {
	if kind != r.Kind {
		return false
	}
	if r.Name != nil {
		return r.Name.MatchString(name)
	}
	return true
}

// EntityFilter is an immutable, ordered set of rules. The zero value matches nothing.
type EntityFilter struct {
	rules []Rule
}

func New(rules ...Rule) EntityFilter {
	return EntityFilter{rules: append([]Rule(nil), rules...)}
}

type ruleSpec struct {
	Kind *string `json:"kind"`
	Name *string `json:"name"`
}

// Parse decodes a JSON array of {"kind": "...", "name": "<regexp>"} objects. Patterns are compiled here, once.
func Parse(input string) (EntityFilter, error) {
	var specs []ruleSpec
	if err := json.Unmarshal([]byte(input), &specs); err != nil {
		return EntityFilter{}, errors.Wrap(err, "invalid entity filter")
	}
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Kind == nil || *spec.Kind == "" {
			return EntityFilter{}, errors.Errorf("invalid entity filter: rule %d has no kind", i)
		}
		rule := Rule{Kind: *spec.Kind}
		if spec.Name != nil {
			pattern, err := regexp.Compile(*spec.Name)
			if err != nil {
				return EntityFilter{}, errors.Wrapf(err, "invalid entity filter: rule %d name pattern", i)
			}
			rule.Name = pattern
		}
		rules = append(rules, rule)
	}
	return EntityFilter{rules: rules}, nil
}

// Matches reports whether any rule matches the entity id. Ids without a dot never match.
func (f EntityFilter) Matches(entityID string) bool {
	kind, name, ok := model.SplitEntityID(entityID)
	if !ok {
		return false
	}
	for _, rule := range f.rules {
		if rule.Matches(kind, name) {
			return true
		}
	}
	return false
}

// MatchesEvent applies Matches to the event's entity id.
func (f EntityFilter) MatchesEvent(ev *model.Event) bool {
	return f.Matches(ev.Data.EntityID)
}

func (f EntityFilter) Rules() []Rule {
	return append([]Rule(nil), f.rules...)
}

func (f EntityFilter) Len() int {
	return len(f.rules)
}

// MarshalJSON renders the filter back into its configuration form.
func (f EntityFilter) MarshalJSON() ([]byte, error) {
	specs := make([]map[string]string, 0, len(f.rules))
	for _, rule := range f.rules {
		spec := map[string]string{"kind": rule.Kind}
		if rule.Name != nil {
			spec["name"] = rule.Name.String()
		}
		specs = append(specs, spec)
	}
	return json.Marshal(specs)
}
