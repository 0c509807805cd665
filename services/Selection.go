package services

import (
	"slices"

	"ballunia/entities"
)

// Selection tracks the chosen product ids of one bundle in progress, one
// insertion-ordered set per category.
type Selection struct {
	rules  entities.BundleRules
	main   []string
	accent []string
	latex  []string
	weight []string
}

func NewSelection(rules entities.BundleRules) *Selection {
	return &Selection{rules: rules}
}

// SelectionFromItems rebuilds a selection from a saved bundle so it can be
// edited. Items go through Toggle, so the usual guards apply.
func SelectionFromItems(rules entities.BundleRules, items []entities.BundleItem) *Selection {
	s := NewSelection(rules)
	for _, it := range items {
		if !s.Has(it.Category, it.Id) {
			s.Toggle(it.Category, it.Id)
		}
	}
	return s
}

func (s *Selection) set(c entities.Category) *[]string {
	switch c {
	case entities.CategoryMain:
		return &s.main
	case entities.CategoryAccent:
		return &s.accent
	case entities.CategoryLatex:
		return &s.latex
	case entities.CategoryWeight:
		return &s.weight
	}
	return nil
}

// Toggle is the only mutator. It deselects a selected product, silently
// ignores additions past a nonzero main max, replaces the weight when exactly
// one is required, and otherwise adds. It reports whether anything changed.
func (s *Selection) Toggle(c entities.Category, productId string) bool {
	ids := s.set(c)
	if ids == nil {
		return false
	}

	if i := slices.Index(*ids, productId); i >= 0 {
		*ids = slices.Delete(*ids, i, i+1)
		return true
	}

	if c == entities.CategoryMain && s.rules.Main.Max != 0 && len(*ids) >= s.rules.Main.Max {
		return false
	}

	if c == entities.CategoryWeight && s.rules.Weight.Count == 1 {
		*ids = []string{productId}
		return true
	}

	*ids = append(*ids, productId)
	return true
}

func (s *Selection) Has(c entities.Category, productId string) bool {
	ids := s.set(c)
	return ids != nil && slices.Contains(*ids, productId)
}

// IDs returns a copy of the selected ids of one category in selection order.
func (s *Selection) IDs(c entities.Category) []string {
	ids := s.set(c)
	if ids == nil {
		return nil
	}
	return slices.Clone(*ids)
}

func (s *Selection) Counts() Counts {
	return Counts{
		entities.CategoryMain:   len(s.main),
		entities.CategoryAccent: len(s.accent),
		entities.CategoryLatex:  len(s.latex),
		entities.CategoryWeight: len(s.weight),
	}
}

// Reset clears every category, e.g. when the active template changes.
func (s *Selection) Reset(rules entities.BundleRules) {
	*s = Selection{rules: rules}
}

func (s *Selection) Validate() entities.Validation {
	return Validate(s.rules, s.Counts())
}
