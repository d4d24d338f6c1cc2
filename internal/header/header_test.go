package header

import (
	"strings"
	"testing"
	"time"
)

func TestParseWellFormed(t *testing.T) {
	raw := []byte(`---
id: 20260101T000000000000Z
title: Hello
category: Resources
tags:
  - a
  - b
created: 2026-01-01T00:00:00Z
updated: 2026-01-01T00:00:00Z
links: []
---

Body text.
`)
	h, body, err := Parse(raw, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Title != "Hello" || h.Category != Resources {
		t.Fatalf("unexpected header: %+v", h)
	}
	if strings.TrimSpace(body) != "Body text." {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestParseMissingHeaderLenient(t *testing.T) {
	h, body, err := Parse([]byte("just a note, no header"), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Title != "Untitled" || h.Category != Resources {
		t.Fatalf("expected synthesized default header, got %+v", h)
	}
	if body != "just a note, no header" {
		t.Fatalf("body should be preserved verbatim, got %q", body)
	}
}

func TestParseMissingHeaderStrictFails(t *testing.T) {
	_, _, err := Parse([]byte("no header here"), ParseOptions{Strict: true})
	if err == nil {
		t.Fatal("expected error in strict mode")
	}
}

func TestValidateRejectsBadUID(t *testing.T) {
	h := &Header{ID: "not-a-uid", Title: "x", Category: Resources}
	if err := h.Validate(false); err == nil {
		t.Fatal("expected malformed uid to fail validation")
	}
}

func TestValidateRejectsEmptyTitle(t *testing.T) {
	h := &Header{ID: "20260101T000000000000Z", Title: "", Category: Resources}
	if err := h.Validate(false); err == nil {
		t.Fatal("expected empty title to fail validation")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &Header{
		ID: "20260301T120000000000Z", Title: "Round Trip", Category: Areas,
		Tags: []string{"x", "y"}, Created: now, Updated: now, Links: []string{"target"},
	}
	out := Serialize(h, "hello body\n")
	h2, body2, err := Parse(out, ParseOptions{Strict: true})
	if err != nil {
		t.Fatalf("Parse(Serialize(h)): %v", err)
	}
	if h2.Title != h.Title || h2.Category != h.Category || len(h2.Tags) != 2 {
		t.Fatalf("round trip mismatch: %+v", h2)
	}
	if body2 != "hello body\n" {
		t.Fatalf("body mismatch: %q", body2)
	}

	out2 := Serialize(h2, body2)
	if string(out) != string(out2) {
		t.Fatalf("serialize(parse(serialize(h))) != serialize(h):\n%s\n---\n%s", out, out2)
	}
}

func TestSerializeKeyOrder(t *testing.T) {
	h := &Header{ID: strings.Repeat("1", 24), Title: "T", Category: Resources, Created: time.Now(), Updated: time.Now()}
	out := string(Serialize(h, ""))
	order := []string{"id:", "title:", "category:", "created:", "updated:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, key)
		if idx < 0 {
			t.Fatalf("missing key %q in output:\n%s", key, out)
		}
		if idx < last {
			t.Fatalf("key %q out of order in output:\n%s", key, out)
		}
		last = idx
	}
}
