package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefixed(t *testing.T) {
	id := NewJobID()
	if !strings.HasPrefix(id, "job_") {
		t.Fatalf("expected job_ prefix, got %q", id)
	}
	if len(id) != len("job_")+26 {
		t.Fatalf("unexpected id length: %q", id)
	}
	if id == NewJobID() {
		t.Fatalf("expected unique ids")
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Hi {firstName}, {name} <{email}>", map[string]string{
		"name":      "Ada Lovelace",
		"firstName": "Ada",
		"email":     "ada@example.com",
	})
	want := "Hi Ada, Ada Lovelace <ada@example.com>"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	// unknown vars stay literal
	got = RenderTemplate("Hi {nope}", map[string]string{"name": "x"})
	if got != "Hi {nope}" {
		t.Fatalf("expected unknown var untouched, got %q", got)
	}
}

func TestFirstName(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":  "Ada",
		"  Ada  ":       "Ada",
		"Ada":           "Ada",
		"":              "there",
		"   ":           "there",
	}
	for in, want := range cases {
		if got := FirstName(in); got != want {
			t.Fatalf("FirstName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestPartition(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	batches := Partition(items, 10)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 10 || len(batches[1]) != 10 || len(batches[2]) != 5 {
		t.Fatalf("unexpected batch sizes: %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}

	// order preserved across the split
	i := 0
	for _, b := range batches {
		for _, v := range b {
			if v != i {
				t.Fatalf("expected %d at position %d, got %d", i, i, v)
			}
			i++
		}
	}

	if got := Partition([]int{}, 10); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := Partition(items, 0); len(got) != 1 || len(got[0]) != 25 {
		t.Fatalf("expected single batch for size 0")
	}
	if got := Partition(items, 100); len(got) != 1 {
		t.Fatalf("expected single short batch, got %d", len(got))
	}
}
