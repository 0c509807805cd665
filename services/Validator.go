package services

import (
	"fmt"

	"ballunia/entities"
)

// Counts is the number of selected products per category.
type Counts map[entities.Category]int

var exactCountLabels = []struct {
	category entities.Category
	label    string
}{
	{entities.CategoryAccent, "accent balloon"},
	{entities.CategoryLatex, "latex balloon"},
	{entities.CategoryWeight, "weight"},
}

// Validate checks selection counts against the template rules. The message
// order is fixed: main min, main max, accent, latex, weight.
func Validate(rules entities.BundleRules, counts Counts) entities.Validation {
	messages := []string{}

	main := rules.Main
	if main.Min != 0 || main.Max != 0 {
		if main.Min != 0 && counts[entities.CategoryMain] < main.Min {
			messages = append(messages, fmt.Sprintf("Select at least %d main balloon%s.", main.Min, plural(main.Min)))
		}
		if main.Max != 0 && counts[entities.CategoryMain] > main.Max {
			messages = append(messages, fmt.Sprintf("You can select at most %d main balloons.", main.Max))
		}
	}

	for _, c := range exactCountLabels {
		required := rules.Count(c.category)
		if required != 0 && counts[c.category] != required {
			messages = append(messages, fmt.Sprintf("Select exactly %d %s%s.", required, c.label, plural(required)))
		}
	}

	return entities.Validation{
		Valid:    len(messages) == 0,
		Messages: messages,
	}
}

// RuleHint is the instruction shown above a category's product list.
func RuleHint(rules entities.BundleRules, category entities.Category) string {
	switch category {
	case entities.CategoryMain:
		min, max := rules.Main.Min, rules.Main.Max
		switch {
		case min != 0 && max != 0:
			return fmt.Sprintf("Select between %d and %d balloons", min, max)
		case min != 0:
			return fmt.Sprintf("Select at least %d balloon%s", min, plural(min))
		case max != 0:
			return fmt.Sprintf("Select up to %d balloons", max)
		}
		return "Select main balloons"
	case entities.CategoryAccent:
		if n := rules.Accent.Count; n != 0 {
			return fmt.Sprintf("Select exactly %d accent balloon%s", n, plural(n))
		}
		return "Select accent balloons"
	case entities.CategoryLatex:
		if n := rules.Latex.Count; n != 0 {
			return fmt.Sprintf("Select exactly %d latex balloon%s", n, plural(n))
		}
		return "Select latex balloons"
	case entities.CategoryWeight:
		if n := rules.Weight.Count; n != 0 {
			return fmt.Sprintf("Select exactly %d weight%s", n, plural(n))
		}
		return "Select a weight"
	}
	return ""
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
