package auth

import (
	"context"
	"strings"
	"testing"
)

func TestResetEmail_EscapesDynamicValues(t *testing.T) {
	link := resetLink("https://app.example.com/reset?lang=en", "abc+/=")
	body, err := renderString(context.Background(), resetEmail(`<b>"al"</b>`, link))
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}

	if strings.Contains(body, "<b>") {
		t.Errorf("username must be escaped:\n%s", body)
	}
	if !strings.Contains(body, "Hello &lt;b&gt;&#34;al&#34;&lt;/b&gt;,") {
		t.Errorf("expected escaped greeting:\n%s", body)
	}
	if !strings.Contains(body, `href="https://app.example.com/reset?lang=en&amp;token=abc%2B%2F%3D"`) {
		t.Errorf("expected escaped reset link:\n%s", body)
	}
}

func TestResetEmail_RejectsScriptLink(t *testing.T) {
	body, err := renderString(context.Background(), resetEmail("alice", resetLink("javascript:alert(1)", "tok")))
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}
	if strings.Contains(body, "javascript:") {
		t.Errorf("unsafe scheme reached the href:\n%s", body)
	}
}
