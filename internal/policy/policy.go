// Package policy decides which hotels get the special-hotel discount. Rules
// are govaluate expressions compiled once at startup.
package policy

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/hotel-broker/internal/domain"
)

// Rule is one special-hotel expression, e.g. "stars >= 4 && 'beach' IN tags".
// Available parameters: stars, code, name, destination, locality, country,
// tags and rates (the number of rates).
type Rule struct {
	ID         string
	Expression string
}

type compiledRule struct {
	id   string
	expr *govaluate.EvaluableExpression
}

// SpecialHotelPolicy flags a hotel as special when any of its rules holds.
type SpecialHotelPolicy struct {
	rules []compiledRule
}

// NewSpecialHotelPolicy compiles rules. A policy without rules flags nothing.
func NewSpecialHotelPolicy(rules []Rule) (*SpecialHotelPolicy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Expression) == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{id: r.ID, expr: expr})
	}
	return &SpecialHotelPolicy{rules: compiled}, nil
}

// ParseRules reads the "id:expression;id:expression" form used in
// configuration. Entries without an id are numbered.
func ParseRules(s string) []Rule {
	var rules []Rule
	for i, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, expr, ok := strings.Cut(entry, ":")
		if !ok || strings.ContainsAny(id, " '\"=<>!&|(") {
			id, expr = fmt.Sprintf("rule-%d", i+1), entry
		}
		rules = append(rules, Rule{ID: strings.TrimSpace(id), Expression: strings.TrimSpace(expr)})
	}
	return rules
}

func parameters(h domain.Hotel) map[string]interface{} {
	tags := make([]interface{}, len(h.Tags))
	for i, t := range h.Tags {
		tags[i] = t
	}
	return map[string]interface{}{
		"stars":       float64(h.Stars),
		"code":        h.Code,
		"name":        h.Name,
		"destination": h.Destination,
		"locality":    h.Location.Locality,
		"country":     h.Location.Country,
		"tags":        tags,
		"rates":       float64(len(h.Rates)),
	}
}

// IsSpecial evaluates the rules in order and stops at the first match. A
// rule that does not evaluate to a boolean is an error.
func (p *SpecialHotelPolicy) IsSpecial(h domain.Hotel) (bool, error) {
	if p == nil || len(p.rules) == 0 {
		return false, nil
	}
	params := parameters(h)
	for _, r := range p.rules {
		res, err := r.expr.Evaluate(params)
		if err != nil {
			return false, fmt.Errorf("policy rule '%s': %w", r.id, err)
		}
		ok, isBool := res.(bool)
		if !isBool {
			return false, fmt.Errorf("policy rule '%s' returned %T, want bool", r.id, res)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Len is the number of compiled rules.
func (p *SpecialHotelPolicy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rules)
}
