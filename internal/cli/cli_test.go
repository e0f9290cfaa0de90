package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"treegrid-cli/internal/store"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()
	return runCLIWithInput(t, nil, args)
}

func runCLIWithInput(t *testing.T, in io.Reader, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	if in != nil {
		cmd.SetIn(in)
	}
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// testEnv isolates the config dir and returns a tree file path in a temp dir.
func testEnv(t *testing.T) string {
	t.Helper()
	t.Setenv(store.EnvConfigDir, t.TempDir())
	t.Setenv(envFile, "")
	t.Setenv(envFormat, "")
	return filepath.Join(t.TempDir(), "plan.sav")
}

func mustData(t *testing.T, args ...string) any {
	t.Helper()
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("treegrid %v failed: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v\nstdout:\n%s", err, stdout)
	}
	data, ok := env["data"]
	if !ok {
		t.Fatalf("expected data key, got %v", env)
	}
	if hints, ok := env["_hints"]; ok {
		if _, ok := hints.([]any); !ok {
			t.Fatalf("expected _hints to be a list, got %T", hints)
		}
	}
	return data
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T (%v)", v, v)
	}
	return m
}

func coordOf(t *testing.T, v any) [2]int {
	t.Helper()
	m := obj(t, v)
	return [2]int{int(m["level"].(float64)), int(m["index"].(float64))}
}

// seed creates Start with children Left and Right.
func seed(t *testing.T, file string) {
	t.Helper()
	mustData(t, "--file", file, "new", "--title", "Start", "--description", "where it begins")
	mustData(t, "--file", file, "nodes", "add", "--parent", "0,0", "--title", "Left")
	mustData(t, "--file", file, "nodes", "add", "--parent", "(0,0)", "--title", "Right")
}

func TestNewAndShow(t *testing.T) {
	file := testEnv(t)
	created := obj(t, mustData(t, "--file", file, "new", "--title", "Start"))
	if created["path"] != file || created["name"] != "plan" {
		t.Fatalf("unexpected new output: %v", created)
	}
	if got := coordOf(t, obj(t, created["root"])["coord"]); got != [2]int{0, 0} {
		t.Fatalf("root at %v", got)
	}

	mustData(t, "--file", file, "nodes", "add", "--parent", "0,0", "--title", "Left")
	shown := obj(t, mustData(t, "--file", file, "show"))
	nodes := shown["nodes"].([]any)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	counts := obj(t, shown["levelCounts"])
	if counts["0"] != float64(1) || counts["1"] != float64(1) {
		t.Fatalf("unexpected level counts %v", counts)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "0,0,0,Start,\n1,0,0,Left,\n" {
		t.Fatalf("unexpected file content %q", b)
	}
}

func TestNew_RefusesExistingFileWithoutForce(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")
	_, stderr, err := runCLI(t, []string{"--file", file, "new", "--title", "Again"})
	if err == nil || !strings.Contains(string(stderr), "--force") {
		t.Fatalf("expected exists error, got %v\n%s", err, stderr)
	}
	mustData(t, "--file", file, "new", "--title", "Again", "--force")
	n := obj(t, mustData(t, "--file", file, "nodes", "get", "0,0"))
	if n["title"] != "Again" {
		t.Fatalf("expected overwritten root, got %v", n)
	}
}

func TestMissingFile(t *testing.T) {
	testEnv(t)
	_, stderr, err := runCLI(t, []string{"show"})
	if err == nil || !strings.Contains(string(stderr), "--file") {
		t.Fatalf("expected missing file error, got %v\n%s", err, stderr)
	}
}

func TestFileWithoutExtensionGetsSav(t *testing.T) {
	file := testEnv(t)
	bare := strings.TrimSuffix(file, ".sav")
	mustData(t, "--file", bare, "new", "--title", "Start")
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("expected %s to exist: %v", file, err)
	}
}

func TestNodesAdd_RequiresTitleAndRejectsSecondRoot(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	if _, _, err := runCLI(t, []string{"--file", file, "nodes", "add", "--parent", "0,0"}); err == nil {
		t.Fatalf("expected missing title error")
	}
	if _, _, err := runCLI(t, []string{"--file", file, "nodes", "add", "--title", "Another root"}); err == nil {
		t.Fatalf("expected duplicate root error")
	}
	if _, _, err := runCLI(t, []string{"--file", file, "nodes", "add", "--parent", "5,0", "--title", "x"}); err == nil {
		t.Fatalf("expected missing parent error")
	}
	if _, _, err := runCLI(t, []string{"--file", file, "nodes", "add", "--parent", "zero", "--title", "x"}); err == nil {
		t.Fatalf("expected bad coordinate error")
	}
}

func TestNodesEdit_KeepsUnsetFields(t *testing.T) {
	file := testEnv(t)
	seed(t, file)

	out := obj(t, mustData(t, "--file", file, "nodes", "edit", "0,0", "--title", "Begin"))
	if res := obj(t, out["result"]); res["changed"] != true {
		t.Fatalf("expected change, got %v", res)
	}
	n := obj(t, out["node"])
	if n["title"] != "Begin" || n["description"] != "where it begins" {
		t.Fatalf("unexpected node %v", n)
	}

	out = obj(t, mustData(t, "--file", file, "nodes", "edit", "0,0", "--title", "Begin"))
	if res := obj(t, out["result"]); res["changed"] != false {
		t.Fatalf("expected no-op edit, got %v", res)
	}
	if _, _, err := runCLI(t, []string{"--file", file, "nodes", "edit", "0,0"}); err == nil {
		t.Fatalf("expected error when nothing to change")
	}
}

func TestNodesDelete_RenumbersSiblings(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	mustData(t, "--file", file, "nodes", "delete", "1,0")
	n := obj(t, mustData(t, "--file", file, "nodes", "get", "1,0"))
	if n["title"] != "Right" {
		t.Fatalf("expected Right to move to (1,0), got %v", n)
	}
}

func TestNodesDelete_KeepGapsThenRenumber(t *testing.T) {
	file := testEnv(t)
	seed(t, file)

	stdout, _, err := runCLI(t, []string{"--file", file, "nodes", "delete", "1,0", "--keep-gaps"})
	if err != nil || !strings.Contains(string(stdout), "_hints") {
		t.Fatalf("expected hint after keep-gaps delete, got %v\n%s", err, stdout)
	}

	_, stderr, err := runCLI(t, []string{"--file", file, "show"})
	if err == nil || !strings.Contains(string(stderr), "treegrid renumber") {
		t.Fatalf("expected gapped file to be refused with a renumber hint, got %v\n%s", err, stderr)
	}

	check := obj(t, decodeData(t, runCheck(t, file)))
	if check["ok"] != false {
		t.Fatalf("expected check to report the gap, got %v", check)
	}

	out := obj(t, mustData(t, "--file", file, "renumber"))
	if out["moved"] != float64(1) {
		t.Fatalf("expected one node moved, got %v", out)
	}
	n := obj(t, mustData(t, "--file", file, "nodes", "get", "1,0"))
	if n["title"] != "Right" {
		t.Fatalf("unexpected node after renumber: %v", n)
	}
	check = obj(t, mustData(t, "--file", file, "check"))
	if check["ok"] != true {
		t.Fatalf("expected healthy tree, got %v", check)
	}
}

func runCheck(t *testing.T, file string) []byte {
	t.Helper()
	stdout, _, err := runCLI(t, []string{"--file", file, "check"})
	if err == nil {
		t.Fatalf("expected check to fail")
	}
	return stdout
}

func decodeData(t *testing.T, stdout []byte) any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	return env["data"]
}

func TestLinks_AddListDelete(t *testing.T) {
	file := testEnv(t)
	seed(t, file)

	mustData(t, "--file", file, "links", "add", "1,0", "1,1")
	links := mustData(t, "--file", file, "nodes", "links", "1,1").([]any)
	found := false
	for _, l := range links {
		if coordOf(t, l) == [2]int{1, 0} {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected (1,0) among links of (1,1): %v", links)
	}
	if _, err := os.Stat(file + ".links"); err != nil {
		t.Fatalf("expected links sidecar next to the save file: %v", err)
	}

	mustData(t, "--file", file, "links", "delete", "1,1", "1,0")
	links = mustData(t, "--file", file, "nodes", "links", "1,0").([]any)
	for _, l := range links {
		if coordOf(t, l) == [2]int{1, 1} {
			t.Fatalf("link should be gone: %v", links)
		}
	}
	if _, err := os.Stat(file + ".links"); !os.IsNotExist(err) {
		t.Fatalf("expected sidecar removed with the last link, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"--file", file, "links", "delete", "1,1", "1,0"}); err == nil {
		t.Fatalf("expected error deleting a missing link")
	}
}

func TestApply_LinkPersists(t *testing.T) {
	file := testEnv(t)
	seed(t, file)

	stdout, stderr, err := runCLI(t, []string{"--file", file, "apply", `{"kind":"add-link","a":{"level":1,"index":0},"b":{"level":1,"index":1}}`})
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, stderr)
	}
	if out := obj(t, decodeData(t, stdout)); out["saved"] != true {
		t.Fatalf("expected saved, got %v", out)
	}
	links := mustData(t, "--file", file, "nodes", "links", "1,0").([]any)
	found := false
	for _, l := range links {
		if coordOf(t, l) == [2]int{1, 1} {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected link from apply to be saved: %v", links)
	}
}

func TestApply_ReadsOpsFromStdin(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")

	ops := strings.Join([]string{
		`{"kind":"add-node","parent":{"level":0,"index":0},"title":"Left"}`,
		`# comments and blank lines are skipped`,
		``,
		`{"kind":"add-node","parent":{"level":1,"index":0},"title":"Deeper"}`,
	}, "\n")
	stdout, stderr, err := runCLIWithInput(t, strings.NewReader(ops), []string{"--file", file, "apply"})
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, stderr)
	}
	out := obj(t, decodeData(t, stdout))
	if out["saved"] != true || len(out["results"].([]any)) != 2 {
		t.Fatalf("unexpected apply output %v", out)
	}
	n := obj(t, mustData(t, "--file", file, "nodes", "get", "2,0"))
	if n["title"] != "Deeper" {
		t.Fatalf("unexpected node %v", n)
	}
}

func TestApply_FailingOpWritesNothing(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")
	before, _ := os.ReadFile(file)

	ops := `{"kind":"add-node","parent":{"level":0,"index":0},"title":"Left"}
{"kind":"delete-node","coord":{"level":4,"index":0}}`
	_, stderr, err := runCLIWithInput(t, strings.NewReader(ops), []string{"--file", file, "apply"})
	if err == nil || !strings.Contains(string(stderr), "operation 2") {
		t.Fatalf("expected failure on operation 2, got %v\n%s", err, stderr)
	}
	after, _ := os.ReadFile(file)
	if !bytes.Equal(before, after) {
		t.Fatalf("file changed despite failure:\n%s", after)
	}
}

func TestApply_Argument(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")
	mustData(t, "--file", file, "apply", `{"kind":"edit-node","coord":{"level":0,"index":0},"title":"Begin"}`)
	if n := obj(t, mustData(t, "--file", file, "nodes", "get", "0,0")); n["title"] != "Begin" {
		t.Fatalf("unexpected root %v", n)
	}
}

func TestLayout(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	mustData(t, "--file", file, "nodes", "add", "--parent", "1,0", "--title", "Deeper")

	plan := obj(t, mustData(t, "--file", file, "layout"))
	if plan["rows"] != float64(2) || plan["columns"] != float64(3) {
		t.Fatalf("unexpected plan size %v", plan)
	}

	stdout, _, err := runCLI(t, []string{"--file", file, "layout", "--text", "--cell-width", "14"})
	if err != nil {
		t.Fatalf("layout --text: %v", err)
	}
	text := string(stdout)
	for _, want := range []string{"(0,0) Start", "(1,0) Left", "(1,1) Right", "(2,0) Deeper"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in text grid:\n%s", want, text)
		}
	}
	if lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d:\n%s", len(lines), text)
	}
}

func TestCheck_HealthyTree(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	out := obj(t, mustData(t, "--file", file, "check"))
	if out["ok"] != true || out["nodes"] != float64(3) {
		t.Fatalf("unexpected check %v", out)
	}
}

func TestFormatEDN(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")
	stdout, _, err := runCLI(t, []string{"--file", file, "--format", "edn", "nodes", "get", "0,0"})
	if err != nil {
		t.Fatalf("edn: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "{:data {") || !strings.Contains(string(stdout), `:title "Start"`) {
		t.Fatalf("unexpected edn %q", stdout)
	}
	if _, _, err := runCLI(t, []string{"--file", file, "--format", "xml", "show"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestExport_WritesSVG(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	out := filepath.Join(t.TempDir(), "grid")
	data := obj(t, mustData(t, "--file", file, "export", "--out", out))
	if data["exportedTo"] != out+".svg" {
		t.Fatalf("unexpected export path %v", data)
	}
	b, err := os.ReadFile(out + ".svg")
	if err != nil || !bytes.Contains(b, []byte("<svg")) {
		t.Fatalf("expected svg file, err=%v", err)
	}
}

func TestLibrary_SaveListOpenDelete(t *testing.T) {
	file := testEnv(t)
	seed(t, file)

	saved := obj(t, mustData(t, "--file", file, "library", "save", "branching"))
	if saved["changed"] != true {
		t.Fatalf("expected first save to change, got %v", saved)
	}
	saved = obj(t, mustData(t, "--file", file, "library", "save", "branching"))
	if saved["changed"] != false {
		t.Fatalf("expected identical save to be a no-op, got %v", saved)
	}

	entries := mustData(t, "library", "list").([]any)
	if len(entries) != 1 || obj(t, entries[0])["name"] != "branching" || obj(t, entries[0])["nodes"] != float64(3) {
		t.Fatalf("unexpected entries %v", entries)
	}

	copyPath := filepath.Join(t.TempDir(), "copy.sav")
	mustData(t, "--file", copyPath, "library", "open", "branching")
	want, _ := os.ReadFile(file)
	got, _ := os.ReadFile(copyPath)
	if !bytes.Equal(want, got) {
		t.Fatalf("library copy differs:\n%s\nwant:\n%s", got, want)
	}
	if _, _, err := runCLI(t, []string{"--file", copyPath, "library", "open", "branching"}); err == nil {
		t.Fatalf("expected refusal to overwrite without --force")
	}

	mustData(t, "library", "delete", "branching")
	if _, _, err := runCLI(t, []string{"library", "delete", "branching"}); err == nil {
		t.Fatalf("expected not-found on second delete")
	}
}

func TestDocs(t *testing.T) {
	testEnv(t)
	topics := obj(t, mustData(t, "docs"))["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("expected docs topics")
	}
	stdout, _, err := runCLI(t, []string{"docs", "save-format", "--raw"})
	if err != nil || !strings.HasPrefix(string(stdout), "# ") {
		t.Fatalf("expected raw markdown, got %v\n%s", err, stdout)
	}
	if _, _, err := runCLI(t, []string{"docs", "nope"}); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}

func TestConfigShowAndPath(t *testing.T) {
	testEnv(t)
	path := obj(t, mustData(t, "config", "path"))["path"].(string)
	if filepath.Base(path) != "config.yaml" || filepath.Dir(path) != os.Getenv(store.EnvConfigDir) {
		t.Fatalf("unexpected config path %q", path)
	}
	shown := obj(t, mustData(t, "config", "show"))
	if shown["cellWidth"] != float64(textCellWidth) {
		t.Fatalf("unexpected config %v", shown)
	}
}

func TestRecentFilesAreRecorded(t *testing.T) {
	file := testEnv(t)
	mustData(t, "--file", file, "new", "--title", "Start")
	cfg, err := store.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Recent) != 1 || cfg.Recent[0] != file {
		t.Fatalf("expected %s in recent files, got %v", file, cfg.Recent)
	}
}

func TestPublish_WritesPages(t *testing.T) {
	file := testEnv(t)
	seed(t, file)
	to := t.TempDir()
	res := obj(t, mustData(t, "--file", file, "publish", "--to", to))
	if res["dir"] != filepath.Join(to, "plan") || len(res["written"].([]any)) != 4 {
		t.Fatalf("unexpected publish result %v", res)
	}
	index, err := os.ReadFile(filepath.Join(to, "plan", "index.md"))
	if err != nil || !strings.Contains(string(index), "  - [(1,1) Right](nodes/1-1.md)") {
		t.Fatalf("unexpected index (err=%v):\n%s", err, index)
	}
	if _, _, err := runCLI(t, []string{"--file", file, "publish", "--to", to}); err == nil {
		t.Fatalf("expected refusal without --overwrite")
	}
}
