package store

import (
	"context"
	"errors"
	"testing"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"
)

func sampleTree(t *testing.T, title string) *tree.Store {
	t.Helper()
	s := tree.New()
	root, err := s.AddNode(nil, title, "")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := s.AddNode(&root, "Child", "desc"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return s
}

func TestLibrary_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	lib, err := OpenLibrary(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()

	e, changed, err := lib.Put(ctx, "plans", sampleTree(t, "Start"))
	if err != nil || !changed {
		t.Fatalf("Put: %+v %v %v", e, changed, err)
	}
	if e.ID == "" || e.Nodes != 2 || len(e.Digest) != 64 {
		t.Fatalf("unexpected entry %+v", e)
	}

	again, changed, err := lib.Put(ctx, "plans", sampleTree(t, "Start"))
	if err != nil || changed || again.ID != e.ID {
		t.Fatalf("identical Put should be a no-op: %+v %v %v", again, changed, err)
	}
	updated, changed, err := lib.Put(ctx, "plans", sampleTree(t, "Renamed"))
	if err != nil || !changed || updated.ID != e.ID || updated.Digest == e.Digest {
		t.Fatalf("expected update in place: %+v %v %v", updated, changed, err)
	}

	got, ge, err := lib.Get(ctx, "plans")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	root, err := got.GetNode(model.RootCoordinate)
	if err != nil || root.Title != "Renamed" || ge.Digest != updated.Digest {
		t.Fatalf("unexpected tree from library: %+v %v", root, err)
	}

	if _, _, err := lib.Put(ctx, "other", sampleTree(t, "Other")); err != nil {
		t.Fatalf("Put other: %v", err)
	}
	list, err := lib.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List: %+v %v", list, err)
	}

	if err := lib.Delete(ctx, "plans"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var nf EntryNotFoundError
	if err := lib.Delete(ctx, "plans"); !errors.As(err, &nf) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, _, err := lib.Get(ctx, "plans"); !errors.As(err, &nf) {
		t.Fatalf("expected not found on Get, got %v", err)
	}
}

func TestLibrary_RejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	lib, err := OpenLibrary(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()
	if _, _, err := lib.Put(ctx, "  ", sampleTree(t, "x")); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestDigest_IsStable(t *testing.T) {
	if Digest("0,0,0,a,\n") != Digest("0,0,0,a,\n") || Digest("a") == Digest("b") {
		t.Fatalf("digest not deterministic")
	}
}

func TestLibrary_KeepsCrossLinks(t *testing.T) {
	ctx := context.Background()
	lib, err := OpenLibrary(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()

	s := sampleTree(t, "Start")
	root := model.RootCoordinate
	second, err := s.AddNode(&root, "Second", "")
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	first := model.Coordinate{Level: 1, Index: 0}
	plain, _, err := lib.Put(ctx, "linked", s)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.AddLink(first, second); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	linked, changed, err := lib.Put(ctx, "linked", s)
	if err != nil || !changed || linked.Digest == plain.Digest {
		t.Fatalf("adding a link should change the entry: %+v %v %v", linked, changed, err)
	}

	got, _, err := lib.Get(ctx, "linked")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	n, err := got.GetNode(second)
	if err != nil || !n.HasLink(first) {
		t.Fatalf("expected %s linked to %s, got %+v %v", second, first, n, err)
	}
}
