package payload

import (
	"reflect"
	"testing"
)

func TestNormalizeAliases(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"data": map[string]any{
			"img":   "https://example.com/a.png",
			"items": []any{map[string]any{"price": float64(1000)}},
		},
		"title": "hello",
	}
	aliases := map[string]string{
		"image_url": "data.img",
		"amount":    "data.items.0.price",
		"missing":   "data.nope.deep",
	}

	got := Normalize(raw, aliases)

	if got["image_url"] != "https://example.com/a.png" {
		t.Fatalf("image_url = %v", got["image_url"])
	}
	if got["amount"] != float64(1000) {
		t.Fatalf("amount = %v", got["amount"])
	}
	if _, ok := got["missing"]; ok {
		t.Fatal("missing alias source must stay absent")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"nested": map[string]any{"id": "abc"},
		"plain":  "x",
	}
	aliases := map[string]string{"order_id": "nested.id"}

	once := Normalize(raw, aliases)
	twice := Normalize(map[string]any(once), aliases)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize not idempotent: %v vs %v", once, twice)
	}
}

func TestNormalizeDropsNullAndEmpty(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"keep":  "value",
		"null":  nil,
		"empty": "",
		"zero":  float64(0),
	}
	got := Normalize(raw, nil)
	if _, ok := got["null"]; ok {
		t.Fatal("null value not dropped")
	}
	if _, ok := got["empty"]; ok {
		t.Fatal("empty string not dropped")
	}
	if got["zero"] != float64(0) {
		t.Fatal("zero is a real value and must be kept")
	}
	if got["keep"] != "value" {
		t.Fatal("plain value lost")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"a": map[string]any{
			"b": []any{"x", map[string]any{"c": true}},
		},
	}
	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{path: "a.b.0", want: "x", found: true},
		{path: "a.b.1.c", want: true, found: true},
		{path: "a.b.2", found: false},
		{path: "a.b.-1", found: false},
		{path: "a.b.notanint", found: false},
		{path: "a.b.0.c", found: false},
		{path: "", found: false},
		{path: "nope", found: false},
	}
	for _, tt := range tests {
		got, ok := Resolve(root, tt.path)
		if ok != tt.found {
			t.Fatalf("Resolve(%q) found = %v, want %v", tt.path, ok, tt.found)
		}
		if ok && got != tt.want {
			t.Fatalf("Resolve(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldHelpers(t *testing.T) {
	t.Parallel()
	p := Payload{
		"chat_id":  float64(123456789),
		"chat_ids": []any{"111", float64(222)},
		"location": map[string]any{"latitude": 1.5, "longitude": -2.25},
		"wrapped":  map[string]any{"cid": "@channel"},
	}
	aliases := map[string]string{"chat_override": "wrapped.cid"}

	if got := p.String("chat_id", nil); got != "123456789" {
		t.Fatalf("String(chat_id) = %q", got)
	}
	if got := p.Strings("chat_ids", nil); !reflect.DeepEqual(got, []string{"111", "222"}) {
		t.Fatalf("Strings(chat_ids) = %v", got)
	}
	if got := p.String("chat_override", aliases); got != "@channel" {
		t.Fatalf("aliased String = %q", got)
	}
	if m := p.Map("location", nil); m == nil || m["latitude"] != 1.5 {
		t.Fatalf("Map(location) = %v", m)
	}
	if got := p.Strings("absent", nil); got != nil {
		t.Fatalf("Strings(absent) = %v", got)
	}
}
