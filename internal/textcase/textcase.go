// Package textcase holds the casing rules shared by the extract and cleanse
// stages.
package textcase

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title upper-cases the first letter of every word and lower-cases the rest,
// so "KETENTUAN UMUM" becomes "Ketentuan Umum".
func Title(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
