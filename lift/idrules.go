package lift

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/plan"
)

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

// applyIDRules runs rules in order; each rule sees the writes of the rules
// before it. A failing rule is an error when the rule or the lift is strict
// and a warning otherwise.
func applyIDRules(doc any, rules []plan.IDRule, strict bool, d *Diagnostics) (any, error) {
	current := doc
	for _, rule := range rules {
		minted, problem := mintID(current, rule)
		if problem != "" {
			if rule.Strict || strict {
				return nil, errors.Validation(errors.ErrIdentifierRule, errors.New(problem))
			}
			d.Warnings = append(d.Warnings, problem)
			continue
		}
		current = jsonptr.Set(current, rule.Path, minted)
	}
	return current, nil
}

// mintID expands the rule's template against its scope. The second result
// describes why the rule could not be applied, naming the rule's target path
// and scope.
func mintID(doc any, rule plan.IDRule) (string, string) {
	scope := doc
	scopePath := "/"
	if rule.Scope != "" {
		scopePath = rule.Scope
		var ok bool
		scope, ok = jsonptr.Get(doc, rule.Scope)
		if !ok {
			return "", fmt.Sprintf("idRules scope not found: %s (rule at %s)", rule.Scope, rule.Path)
		}
	}
	fields, ok := scope.(map[string]any)
	if !ok {
		return "", fmt.Sprintf("idRules scope is not an object for template %s (rule at %s, scope %s)",
			rule.Template, rule.Path, scopePath)
	}

	var missing []string
	expanded := placeholder.ReplaceAllStringFunc(rule.Template, func(match string) string {
		key := match[1 : len(match)-1]
		text, ok := jsonptr.Text(fields[key])
		if !ok {
			missing = append(missing, key)
			return match
		}
		return text
	})
	if len(missing) > 0 {
		return "", fmt.Sprintf("idRules template variables missing for template %s: %s (rule at %s, scope %s)",
			rule.Template, strings.Join(missing, ", "), rule.Path, scopePath)
	}
	return expanded, ""
}
