package savefile

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"treegrid-cli/internal/model"
	"treegrid-cli/internal/tree"

	"github.com/zeebo/blake3"
)

// Cross links are kept next to the save file in path+LinksExt:
//
//	digest <blake3 of the .sav content>
//	1,0,1,1
//	0,0,2,3
//
// Each body line is "levelA,indexA,levelB,indexB". A sidecar whose digest does not
// match the .sav it sits beside is stale and ignored.
const (
	LinksExt = ".links"

	linksHeader     = "digest "
	linkFieldCount  = 4
	linksHeaderLine = 1
)

func LinksPath(path string) string { return path + LinksExt }

// Digest is the hex blake3 hash of content.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SerializeLinks renders t's cross links, one pair per line. Parent/child edges are
// implied by the .sav lines and are not repeated.
func SerializeLinks(t *tree.Store) string {
	var b strings.Builder
	for _, p := range t.CrossLinks() {
		fmt.Fprintf(&b, "%d,%d,%d,%d\n", p[0].Level, p[0].Index, p[1].Level, p[1].Index)
	}
	return b.String()
}

// ApplyLinks adds the links in text (SerializeLinks form) to t.
func ApplyLinks(t *tree.Store, text string) error {
	return applyLinkLines(t, strings.Split(text, "\n"), 0)
}

// Same reports whether a and b would save to identical files.
func Same(a, b *tree.Store) bool {
	return Serialize(a) == Serialize(b) && SerializeLinks(a) == SerializeLinks(b)
}

func applyLinkLines(t *tree.Store, lines []string, offset int) error {
	for i, raw := range lines {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		bad := func(reason string, err error) error {
			return &MalformedLineError{Line: offset + i + 1, Text: raw, Reason: reason, Err: err}
		}
		fields := strings.Split(raw, ",")
		if len(fields) != linkFieldCount {
			return bad(fmt.Sprintf("expected %d fields, got %d", linkFieldCount, len(fields)), nil)
		}
		var n [linkFieldCount]int
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil || v < 0 {
				return bad("link field is not a non-negative integer", err)
			}
			n[j] = v
		}
		a := model.Coordinate{Level: n[0], Index: n[1]}
		b := model.Coordinate{Level: n[2], Index: n[3]}
		if err := t.AddLink(a, b); err != nil {
			return bad("cannot link", err)
		}
	}
	return nil
}

func readLinksFile(path string, t *tree.Store, digest string) error {
	data, err := os.ReadFile(LinksPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	header := strings.TrimRight(lines[0], "\r")
	if !strings.HasPrefix(header, linksHeader) {
		return &MalformedLineError{Line: linksHeaderLine, Text: header, Reason: "missing digest header"}
	}
	if strings.TrimSpace(strings.TrimPrefix(header, linksHeader)) != digest {
		return nil
	}
	return applyLinkLines(t, lines[1:], linksHeaderLine)
}

// writeLinksFile writes or removes the sidecar for the .sav at path.
func writeLinksFile(path string, t *tree.Store, digest string) error {
	body := SerializeLinks(t)
	if body == "" {
		if err := os.Remove(LinksPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeAtomic(LinksPath(path), []byte(linksHeader+digest+"\n"+body))
}
