// Package format renders command results for stdout.
package format

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

type Format string

const (
	JSON Format = "json"
	EDN  Format = "edn"
)

type UnknownFormatError struct {
	Name string
}

func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown format: %s (want json or edn)", e.Name)
}

// Parse maps a --format value to a Format. Empty means JSON.
func Parse(name string) (Format, error) {
	switch name {
	case "", string(JSON):
		return JSON, nil
	case string(EDN):
		return EDN, nil
	}
	return "", UnknownFormatError{Name: name}
}

// Write encodes v in the requested format followed by a newline.
func Write(w io.Writer, v any, name string, pretty bool) error {
	f, err := Parse(name)
	if err != nil {
		return err
	}
	if f == EDN {
		return WriteEDN(w, v, pretty)
	}
	return WriteJSON(w, v, pretty)
}

// WriteJSON keeps output strict JSON; extra context goes in a `meta` object.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
