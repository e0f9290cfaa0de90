package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics()
	want := map[string]bool{"cli": false, "config": false, "keys": false, "save-format": false}
	for _, tp := range topics {
		if _, ok := want[tp]; ok {
			want[tp] = true
		}
	}
	for tp, seen := range want {
		if !seen {
			t.Fatalf("missing topic %q in %v", tp, topics)
		}
	}
}

func TestGet(t *testing.T) {
	body, ok := Get(" Save-Format ")
	if !ok || !strings.Contains(body, "level,index,parentIndex,title,description") {
		t.Fatalf("unexpected save-format doc (ok=%v)", ok)
	}
	if _, ok := Get("../docs"); ok {
		t.Fatalf("expected path-like topic to be rejected")
	}
	if _, ok := Get(""); ok {
		t.Fatalf("expected empty topic to be rejected")
	}
}
