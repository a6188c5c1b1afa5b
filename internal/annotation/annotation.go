// Package annotation parses UAVSAR annotation (.ann) files.
//
// Each meaningful line has the shape
//
//	key (units) = value ; comment
//
// where the units group and the comment are optional. Lines starting with a
// semicolon are comments. Keys are matched case-insensitively.
package annotation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMissingKey is returned by the typed lookups when a key is absent.
var ErrMissingKey = errors.New("annotation key not found")

// Entry is one parsed annotation line.
type Entry struct {
	Value   string `json:"value"`
	Units   string `json:"units,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Description maps lower-cased annotation keys to their entries.
type Description map[string]Entry

// Parse reads an annotation stream. Later duplicates of a key overwrite
// earlier ones.
func Parse(r io.Reader) (Description, error) {
	desc := make(Description)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		key, entry, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		desc[key] = entry
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read annotation: %w", err)
	}
	return desc, nil
}

// ParseFile parses the annotation file at path.
func ParseFile(path string) (Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	desc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

func parseLine(line string) (string, Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return "", Entry{}, false
	}

	var comment string
	if i := strings.Index(line, ";"); i >= 0 {
		comment = strings.TrimSpace(line[i+1:])
		line = line[:i]
	}

	lhs, value, found := strings.Cut(line, "=")
	if !found {
		return "", Entry{}, false
	}

	lhs = strings.TrimSpace(lhs)
	var units string
	if strings.HasSuffix(lhs, ")") {
		if open := strings.LastIndex(lhs, "("); open >= 0 {
			units = strings.TrimSpace(lhs[open+1 : len(lhs)-1])
			lhs = strings.TrimSpace(lhs[:open])
		}
	}
	if lhs == "" {
		return "", Entry{}, false
	}

	return strings.ToLower(lhs), Entry{
		Value:   strings.TrimSpace(value),
		Units:   units,
		Comment: comment,
	}, true
}

// Get returns the entry for key, matched case-insensitively.
func (d Description) Get(key string) (Entry, bool) {
	e, ok := d[strings.ToLower(key)]
	return e, ok
}

// Float returns the numeric value of key.
func (d Description) Float(key string) (float64, error) {
	e, ok := d.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	v, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("annotation %s: %w", key, err)
	}
	return v, nil
}

// Int returns the integer value of key. Values written with a trailing
// ".0" are accepted.
func (d Description) Int(key string) (int, error) {
	f, err := d.Float(key)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("annotation %s: %v is not an integer", key, f)
	}
	return int(f), nil
}

// String returns the raw value of key.
func (d Description) String(key string) (string, error) {
	e, ok := d.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return e.Value, nil
}
