// Package sanitize strips markup from user-supplied text fields before they
// are stored. Usernames end up in admin listings, audit entries, and the
// HTML body of reset emails, so they must never carry tags.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict policy: no elements, no attributes.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// PlainText removes every HTML element from input and trims surrounding
// whitespace. Entities escaped by the sanitizer are decoded again so that
// "Tom & Jerry" survives as typed; the result is plain text, not HTML, and
// must still be escaped by whatever renders it.
func PlainText(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(input)))
}
