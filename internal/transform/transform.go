// Package transform rewrites environment placeholders in deployment
// config text. The rewrite is pure text substitution: the input is
// never parsed as markup, so malformed XML passes through untouched
// apart from the two substitutions.
package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// driveRoot matches any single-letter drive root, any case, anywhere
// in the text.
var driveRoot = regexp.MustCompile(`[A-Za-z]:\\`)

// Transformer applies the environment substitutions. The zero value is
// not usable; construct with New.
type Transformer struct {
	placeholder string
	domain      string
	driveRoot   string
}

// New builds a Transformer. placeholder is the literal hostname token
// to replace, domainSuffix the suffix appended to the environment name
// and targetDrive the single drive letter every drive root is
// rewritten to.
func New(placeholder, domainSuffix, targetDrive string) *Transformer {
	return &Transformer{
		placeholder: placeholder,
		domain:      domainSuffix,
		driveRoot:   strings.ToUpper(targetDrive) + `:\`,
	}
}

// Hostname returns the host the placeholder is replaced with for the
// given environment.
func (t *Transformer) Hostname(environment string) string {
	return environment + "." + t.domain
}

// Apply rewrites raw for the given environment. It is pure and
// idempotent: applying it to already-transformed text is a no-op,
// because the computed hostname never contains the placeholder and the
// target drive root maps to itself.
func (t *Transformer) Apply(raw, environment string) string {
	out := strings.ReplaceAll(raw, t.placeholder, t.Hostname(environment))
	return driveRoot.ReplaceAllLiteralString(out, t.driveRoot)
}

// Preview returns a bounded-length prefix of text for dry-run output,
// cut on a rune boundary.
func Preview(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
