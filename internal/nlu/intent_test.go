package nlu

import "testing"

func TestParseIntentRejectsUnknownLabels(t *testing.T) {
	if _, ok := ParseIntent("search_product"); !ok {
		t.Fatal("expected search_product to be valid")
	}
	if _, ok := ParseIntent(" GREETING "); !ok {
		t.Fatal("expected case-insensitive parse")
	}
	intent, ok := ParseIntent("buy_now_please")
	if ok {
		t.Fatal("expected unknown label to be rejected")
	}
	if intent != IntentOther {
		t.Fatalf("expected fallback intent other, got %s", intent)
	}
}

func TestTokenizeFallback(t *testing.T) {
	tokens := Tokenize("iPhone 13")
	if len(tokens) != 2 || tokens[0] != "iphone" || tokens[1] != "13" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
	if got := Tokenize("   "); len(got) != 0 {
		t.Fatalf("expected no tokens for blank input, got %v", got)
	}
}

func TestEntityFlattensLists(t *testing.T) {
	c := Classification{Intent: IntentOrder, Entities: map[string]any{
		"product": "iPhone 13",
		"colors":  []any{"bleu", "noir"},
		"count":   3,
	}}
	if got := c.Entity("product"); got != "iPhone 13" {
		t.Fatalf("unexpected product entity: %q", got)
	}
	if got := c.Entity("colors"); got != "bleu" {
		t.Fatalf("unexpected list entity: %q", got)
	}
	if got := c.Entity("count"); got != "" {
		t.Fatalf("expected non-string entity to collapse to empty, got %q", got)
	}
	if got := c.Entity("missing"); got != "" {
		t.Fatalf("expected empty for missing entity, got %q", got)
	}
}

func TestStripFences(t *testing.T) {
	raw := "```json\n{\"intent\": \"greeting\"}\n```"
	if got := stripFences(raw); got != `{"intent": "greeting"}` {
		t.Fatalf("unexpected fence strip result: %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("plain JSON should pass through, got %q", got)
	}
}
