package auth

import (
	"bytes"
	"context"
	"net/url"

	"github.com/a-h/templ"
)

// resetEmailSubject is the subject line of password reset emails.
const resetEmailSubject = "Password Reset Request"

// resetLink appends the token to base as the "token" query parameter,
// preserving any query the base already carries.
func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// renderString renders a component into a string.
func renderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
