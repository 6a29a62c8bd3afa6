// Package escape implements bracket's default output escaping (spec.md
// §6): the character set and entity forms Handlebars.js's own
// escapeExpression uses, grounded on original_source's escape module of
// the same name.
package escape

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// HTML is bracket's default Escape function, registered on every Registry
// unless overridden.
func HTML(s string) string {
	return htmlReplacer.Replace(s)
}
