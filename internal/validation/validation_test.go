package validation

import (
	"strings"
	"testing"

	"github.com/xtxerr/archivist/internal/errors"
)

func TestValidateName(t *testing.T) {
	rules := DefaultNameRules()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "archivist", false},
		{"with hyphen", "abuse-bot", false},
		{"with underscore", "abuse_bot", false},
		{"numbers", "123", false},
		{"unicode letters", "bücher", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"hidden", ".hidden", true},
		{"slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"control char", "a\x00b", true},
		{"space", "a b", true},
		{"with dot", "abuse.bot", true},
		{"too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input, rules)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidName) {
				t.Errorf("ValidateName(%q) error %v does not wrap ErrInvalidName", tt.input, err)
			}
		})
	}
}

func TestServiceNameRulesAllowDots(t *testing.T) {
	if err := ValidateName("abusehelper.archive", ServiceNameRules()); err != nil {
		t.Errorf("dotted name rejected: %v", err)
	}
	if err := ValidateName(".archive", ServiceNameRules()); err == nil {
		t.Error("leading dot accepted")
	}
}

func TestValidateArchivePath(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"room", false},
		{"room/2024-03-01", false},
		{"a.b/c d", false},
		{"", true},
		{"/abs", true},
		{"a//b", true},
		{"a/", true},
		{"../escape", true},
		{"a/./b", true},
		{"a\x00b", true},
		{"a\\b", true},
		{strings.Repeat("x", 256), true},
	}

	for _, tt := range tests {
		err := ValidateArchivePath(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateArchivePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrInvalidPath) {
			t.Errorf("ValidateArchivePath(%q) error %v does not wrap ErrInvalidPath", tt.input, err)
		}
	}
}
