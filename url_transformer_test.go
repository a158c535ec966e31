package fetchagent

import "testing"

func TestURLRulesTransform(t *testing.T) {
	rules := NewURLRules().
		AddRule("https://api.example.com", "http://api.internal").
		AddRule("/v1/", "/v2/")

	got := rules.Transform("https://api.example.com/v1/items")
	if got != "http://api.internal/v2/items" {
		t.Errorf("Unexpected transform result %q", got)
	}

	if got := rules.Transform("https://other.example.com/x"); got != "https://other.example.com/x" {
		t.Errorf("Expected unmatched URL to be unchanged, got %q", got)
	}

	rules.Clear()
	if got := rules.Transform("https://api.example.com/v1/items"); got != "https://api.example.com/v1/items" {
		t.Errorf("Expected cleared rules to leave URL unchanged, got %q", got)
	}
}

func TestURLRulesIgnoreEmptyPattern(t *testing.T) {
	rules := NewURLRules().AddRule("", "x")
	if got := rules.Transform("https://a/b"); got != "https://a/b" {
		t.Errorf("Expected empty pattern to be ignored, got %q", got)
	}
}

func TestURLTransformerFunc(t *testing.T) {
	var transformer URLTransformer = URLTransformerFunc(func(u string) string { return u + "?debug=1" })
	if got := transformer.Transform("https://a/b"); got != "https://a/b?debug=1" {
		t.Errorf("Unexpected result %q", got)
	}
}
