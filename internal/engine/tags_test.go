package engine

import (
	"errors"
	"testing"

	"hostsync/internal/model"
)

func testCatalog() model.TagCatalog {
	return model.TagCatalog{
		"Criticality": {"prod", "test", "offline"},
		"networking":  {"lan", "wan"},
	}
}

func TestTagMatcherResolve(t *testing.T) {
	matcher := NewTagMatcher(testCatalog())

	tests := []struct {
		name    string
		tag     string
		want    string
		wantErr bool
	}{
		{name: "exact match", tag: "Criticality", want: "Criticality"},
		{name: "case insensitive fallback", tag: "criticality", want: "Criticality"},
		{name: "uppercase fallback", tag: "NETWORKING", want: "networking"},
		{name: "unknown group", tag: "piggyback", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matcher.Resolve(tt.tag)
			if tt.wantErr {
				var unknownErr *UnknownTagError
				if !errors.As(err, &unknownErr) {
					t.Fatalf("Resolve(%q) error = %v, want UnknownTagError", tt.tag, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestTagMatcherValidChoice(t *testing.T) {
	matcher := NewTagMatcher(testCatalog())

	ok, err := matcher.ValidChoice("Criticality", "prod", false)
	if err != nil || !ok {
		t.Errorf("ValidChoice(prod) = %v, %v, want true, nil", ok, err)
	}

	// Non-strict: invalid choice is reported but not an error.
	ok, err = matcher.ValidChoice("Criticality", "bogus", false)
	if err != nil {
		t.Errorf("ValidChoice(bogus, lenient) returned error: %v", err)
	}
	if ok {
		t.Error("ValidChoice(bogus, lenient) = true, want false")
	}

	// Strict: invalid choice is an InvalidChoiceError.
	_, err = matcher.ValidChoice("Criticality", "bogus", true)
	var choiceErr *InvalidChoiceError
	if !errors.As(err, &choiceErr) {
		t.Fatalf("ValidChoice(bogus, strict) error = %v, want InvalidChoiceError", err)
	}
	if choiceErr.Group != "Criticality" || choiceErr.Value != "bogus" {
		t.Errorf("InvalidChoiceError = %+v", choiceErr)
	}

	// Unknown group fails in either mode.
	if _, err := matcher.ValidChoice("piggyback", "x", false); err == nil {
		t.Error("ValidChoice on unknown group returned nil error")
	}
}
