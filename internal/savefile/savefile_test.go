package savefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"

	"pgregory.net/rapid"
)

func scenario(t *testing.T) *tree.Store {
	t.Helper()
	s := tree.New()
	root, err := s.AddNode(nil, "Start", "where it begins")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	a, _ := s.AddNode(&root, "Left", "first option")
	if _, err := s.AddNode(&root, "Right", "second option"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddNode(&a, "Deeper", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	return s
}

func TestSerialize_Scenario(t *testing.T) {
	got := Serialize(scenario(t))
	want := strings.Join([]string{
		"0,0,0,Start,where it begins",
		"1,0,0,Left,first option",
		"1,1,0,Right,second option",
		"2,0,0,Deeper,",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected serialization:\n%s\nwant:\n%s", got, want)
	}
}

func TestDeserialize_ReconstructsScenario(t *testing.T) {
	orig := scenario(t)
	back, err := Deserialize(Serialize(orig))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	assertSameTree(t, orig, back)
	if vs := back.Check(); len(vs) != 0 {
		t.Fatalf("expected healthy tree after load, got %+v", vs)
	}
}

func TestDeserialize_OrphansRoundTrip(t *testing.T) {
	s := scenario(t)
	if err := s.DeleteNode(model.Coordinate{Level: 1, Index: 0}, true); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	text := Serialize(s)
	if !strings.Contains(text, "2,0,-1,Deeper,") {
		t.Fatalf("expected orphan to be written with parent -1:\n%s", text)
	}
	back, err := Deserialize(text)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	assertSameTree(t, s, back)
}

func TestDeserialize_ToleratesBlankLinesAndCRLF(t *testing.T) {
	back, err := Deserialize("0,0,0,Start,\r\n\r\n1,0,0,Child,x\r\n")
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	n, err := back.GetNode(model.Coordinate{Level: 1, Index: 0})
	if err != nil || n.Description != "x" {
		t.Fatalf("unexpected node %+v err=%v", n, err)
	}
}

func TestDeserialize_Malformed(t *testing.T) {
	cases := map[string]struct {
		text string
		line int
	}{
		"too few fields":   {"0,0,0,Start", 1},
		"comma in title":   {"0,0,0,Start,desc\n1,0,0,a,b,c", 2},
		"non-integer":      {"x,0,0,Start,", 1},
		"negative index":   {"0,-1,0,Start,", 1},
		"bad parent index": {"0,0,0,Start,\n1,0,-4,a,", 2},
		"descending level": {"0,0,0,Start,\n1,0,0,a,\n2,0,0,b,\n1,1,0,c,", 4},
		"missing parent":   {"0,0,0,Start,\n1,0,0,a,\n2,0,3,b,", 3},
		"duplicate":        {"0,0,0,Start,\n1,0,0,a,\n1,0,0,b,", 3},
		"second root":      {"0,0,0,Start,\n0,0,0,Again,", 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(tc.text)
			var me *MalformedLineError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedLineError, got %v", err)
			}
			if me.Line != tc.line {
				t.Fatalf("expected line %d, got %d (%v)", tc.line, me.Line, err)
			}
		})
	}
}

func TestDeserialize_MissingParentUnwrapsToNotFound(t *testing.T) {
	_, err := Deserialize("0,0,0,Start,\n1,0,7,a,")
	if !errors.Is(err, tree.ErrNotFound) {
		t.Fatalf("expected wrapped not-found, got %v", err)
	}
}

func TestDeserialize_RejectsGappedLevel(t *testing.T) {
	_, err := Deserialize("0,0,0,Start,\n1,1,0,a,")
	var iv *tree.InvariantViolation
	if !errors.As(err, &iv) || iv.Rule != tree.RuleContiguous {
		t.Fatalf("expected contiguity violation, got %v", err)
	}
}

func TestReadWith_AllowGapsKeepsGappedLevel(t *testing.T) {
	back, err := ReadWith(strings.NewReader("0,0,0,Start,\n1,1,0,a,"), ReadOptions{AllowGaps: true})
	if err != nil {
		t.Fatalf("ReadWith: %v", err)
	}
	if moved := back.Renumber(1); moved != 1 {
		t.Fatalf("expected renumber to move one node, moved %d", moved)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("expected healthy tree after renumber: %v", err)
	}
}

func TestWriteFile_KeepsBackupAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans", "tree.sav")

	first := scenario(t)
	if err := WriteFile(path, first); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	second := scenario(t)
	if err := second.EditNode(model.RootCoordinate, "Renamed", ""); err != nil {
		t.Fatalf("EditNode: %v", err)
	}
	if err := WriteFile(path, second); err != nil {
		t.Fatalf("WriteFile again: %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("expected backup: %v", err)
	}
	if !strings.HasPrefix(string(bak), "0,0,0,Start,") {
		t.Fatalf("backup should hold the previous content, got %q", bak)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	assertSameTree(t, second, back)

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestBaseNameAndWithExt(t *testing.T) {
	if got := BaseName("/x/y/My Tree.sav"); got != "My Tree" {
		t.Fatalf("BaseName = %q", got)
	}
	if got := WithExt("plan"); got != "plan.sav" {
		t.Fatalf("WithExt = %q", got)
	}
	if got := WithExt("plan.txt"); got != "plan.txt" {
		t.Fatalf("WithExt kept ext = %q", got)
	}
}

func TestProperty_RoundTrip(t *testing.T) {
	title := rapid.StringMatching(`[A-Za-z0-9 _.-]{0,12}`)
	rapid.Check(t, func(t *rapid.T) {
		s := tree.New()
		if _, err := s.AddNode(nil, title.Draw(t, "rootTitle"), title.Draw(t, "rootDesc")); err != nil {
			t.Fatalf("root: %v", err)
		}
		n := rapid.IntRange(0, 40).Draw(t, "n")
		for i := 0; i < n; i++ {
			nodes := s.Nodes()
			p := nodes[rapid.IntRange(0, len(nodes)-1).Draw(t, "parent")].Coord
			if _, err := s.AddNode(&p, title.Draw(t, "title"), title.Draw(t, "desc")); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		back, err := Deserialize(Serialize(s))
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		want, got := s.Nodes(), back.Nodes()
		if len(want) != len(got) {
			t.Fatalf("node count %d != %d", len(got), len(want))
		}
		for i := range want {
			if !sameNode(want[i], got[i]) {
				t.Fatalf("node %d differs: %+v vs %+v", i, want[i], got[i])
			}
		}
	})
}

func sameNode(a, b model.Node) bool {
	if a.Coord != b.Coord || a.Title != b.Title || a.Description != b.Description {
		return false
	}
	if (a.Parent == nil) != (b.Parent == nil) {
		return false
	}
	return a.Parent == nil || *a.Parent == *b.Parent
}

func assertSameTree(t *testing.T, want, got *tree.Store) {
	t.Helper()
	w, g := want.Nodes(), got.Nodes()
	if len(w) != len(g) {
		t.Fatalf("expected %d nodes, got %d", len(w), len(g))
	}
	for i := range w {
		if !sameNode(w[i], g[i]) {
			t.Fatalf("node %s differs:\nwant %+v\ngot  %+v", w[i].Coord, w[i], g[i])
		}
	}
}

func TestWriteFile_PersistsCrossLinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.sav")
	s := scenario(t)
	if err := s.AddLink(model.Coordinate{Level: 1, Index: 1}, model.Coordinate{Level: 2, Index: 0}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	side, err := os.ReadFile(LinksPath(path))
	if err != nil {
		t.Fatalf("expected links sidecar: %v", err)
	}
	sav, _ := os.ReadFile(path)
	want := "digest " + Digest(sav) + "\n1,1,2,0\n"
	if string(side) != want {
		t.Fatalf("sidecar = %q, want %q", side, want)
	}

	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !Same(s, back) {
		t.Fatalf("links lost on reload:\n%s\nvs\n%s", SerializeLinks(s), SerializeLinks(back))
	}

	if err := back.DeleteLink(model.Coordinate{Level: 2, Index: 0}, model.Coordinate{Level: 1, Index: 1}); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if err := WriteFile(path, back); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(LinksPath(path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected sidecar removed once no links remain, got %v", err)
	}
}

func TestReadFile_IgnoresStaleLinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.sav")
	s := scenario(t)
	if err := s.AddLink(model.Coordinate{Level: 1, Index: 1}, model.Coordinate{Level: 2, Index: 0}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(path, []byte("0,0,0,Other,\n1,0,0,Only,\n"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := back.CrossLinks(); len(got) != 0 {
		t.Fatalf("expected stale links ignored, got %v", got)
	}
}

func TestReadFile_MalformedLinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.sav")
	if err := WriteFile(path, scenario(t)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sav, _ := os.ReadFile(path)
	header := "digest " + Digest(sav) + "\n"

	cases := map[string]struct {
		body     string
		line     int
		notFound bool
	}{
		"too few fields": {header + "1,0,1\n", 2, false},
		"not a number":   {header + "1,1,2,0\n1,x,2,0\n", 3, false},
		"missing node":   {header + "1,0,5,0\n", 2, true},
		"no header":      {"1,0,1,1\n", 1, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(LinksPath(path), []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write sidecar: %v", err)
			}
			_, err := ReadFile(path)
			var me *MalformedLineError
			if !errors.As(err, &me) || me.Line != tc.line {
				t.Fatalf("expected MalformedLineError on line %d, got %v", tc.line, err)
			}
			if tc.notFound && !errors.Is(err, tree.ErrNotFound) {
				t.Fatalf("expected wrapped not-found, got %v", err)
			}
		})
	}
}

func TestApplyLinks(t *testing.T) {
	s := scenario(t)
	if err := ApplyLinks(s, "1,1,2,0\n\n"); err != nil {
		t.Fatalf("ApplyLinks: %v", err)
	}
	if got := SerializeLinks(s); got != "1,1,2,0\n" {
		t.Fatalf("SerializeLinks = %q", got)
	}
}
