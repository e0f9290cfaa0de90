package format

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// WriteEDN writes the subset of EDN our payloads need: maps, vectors, strings,
// numbers, booleans and nil. Values go through JSON first so struct tags decide
// the key names.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}

	var sb strings.Builder
	enc := ednWriter{sb: &sb, pretty: pretty}
	enc.value(generic, 0)
	sb.WriteByte('\n')
	_, err = io.WriteString(w, sb.String())
	return err
}

type ednWriter struct {
	sb     *strings.Builder
	pretty bool
}

const ednIndent = "  "

func (e ednWriter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		e.sb.WriteString("nil")
	case bool:
		e.sb.WriteString(strconv.FormatBool(t))
	case string:
		e.sb.WriteString(strconv.Quote(t))
	case float64:
		// Coordinates and counts are integral.
		if t == float64(int64(t)) {
			e.sb.WriteString(strconv.FormatInt(int64(t), 10))
		} else {
			e.sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
		}
	case []any:
		e.sb.WriteByte('[')
		for i, it := range t {
			e.sep(i, depth)
			e.value(it, depth+1)
		}
		e.close(len(t), depth, ']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		e.sb.WriteByte('{')
		for i, k := range keys {
			e.sep(i, depth)
			e.sb.WriteByte(':')
			e.sb.WriteString(keyword(k))
			e.sb.WriteByte(' ')
			e.value(t[k], depth+1)
		}
		e.close(len(keys), depth, '}')
	default:
		e.sb.WriteString(strconv.Quote(fmt.Sprint(t)))
	}
}

// sep writes what goes before the i-th element of a collection.
func (e ednWriter) sep(i, depth int) {
	switch {
	case e.pretty:
		e.sb.WriteByte('\n')
		e.sb.WriteString(strings.Repeat(ednIndent, depth+1))
	case i > 0:
		e.sb.WriteByte(' ')
	}
}

func (e ednWriter) close(n, depth int, delim byte) {
	if e.pretty && n > 0 {
		e.sb.WriteByte('\n')
		e.sb.WriteString(strings.Repeat(ednIndent, depth))
	}
	e.sb.WriteByte(delim)
}

// keyword turns a JSON key into an EDN keyword name.
func keyword(k string) string {
	k = strings.TrimSpace(k)
	if k == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', ':', '/':
			return '-'
		}
		return r
	}, k)
}
