package engine

import (
	"fmt"
	"strings"

	"hostsync/internal/model"
)

// UnknownTagError is returned when a requested tag name matches no
// tag group on the site, in any casing.
type UnknownTagError struct {
	Name string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("no matching tag group for %q", e.Name)
}

// InvalidChoiceError is returned in strict mode when a value is not a
// legal choice for its tag group.
type InvalidChoiceError struct {
	Group   string
	Value   string
	Choices []string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("%q is not a valid choice for tag group %q, valid choices: %s",
		e.Value, e.Group, strings.Join(e.Choices, ", "))
}

// TagMatcher resolves imported tag names against the tag groups known
// to the site. The casing of imported data is not guaranteed to match
// the site, so resolution falls back to a case-insensitive lookup:
// an exact match wins, a differently-cased match is used second, and
// anything else is an UnknownTagError.
type TagMatcher struct {
	catalog    model.TagCatalog
	normalized map[string]string // lowercased name -> canonical name
}

// NewTagMatcher builds a matcher over the site's tag catalog.
func NewTagMatcher(catalog model.TagCatalog) *TagMatcher {
	normalized := make(map[string]string, len(catalog))
	for group := range catalog {
		normalized[strings.ToLower(group)] = group
	}
	return &TagMatcher{catalog: catalog, normalized: normalized}
}

// Resolve returns the canonical tag-group identifier for name.
func (m *TagMatcher) Resolve(name string) (string, error) {
	if _, ok := m.catalog[name]; ok {
		return name, nil
	}
	if canonical, ok := m.normalized[strings.ToLower(name)]; ok {
		return canonical, nil
	}
	return "", &UnknownTagError{Name: name}
}

// ValidChoice checks whether value is a legal choice for the given
// tag group. With strict set, an invalid choice is returned as an
// InvalidChoiceError; otherwise the caller is expected to log and
// carry on.
func (m *TagMatcher) ValidChoice(group, value string, strict bool) (bool, error) {
	canonical, err := m.Resolve(group)
	if err != nil {
		return false, err
	}

	choices := m.catalog[canonical]
	for _, choice := range choices {
		if choice == value {
			return true, nil
		}
	}

	if strict {
		return false, &InvalidChoiceError{Group: canonical, Value: value, Choices: choices}
	}
	return false, nil
}
