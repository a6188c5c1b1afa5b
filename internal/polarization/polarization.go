// Package polarization pairs UAVSAR binary products with the annotation file
// for the same polarization.
//
// Matching is by substring on the file's base name against a fixed code list
// in a fixed order: VV, VH, HV, HH. The first code found wins, so a PolSAR
// cross-product such as "HHHV" resolves to HV, not HH. Annotation lookup takes
// the first annotation in listing order that contains the code; listing order
// is whatever the caller passes in and is not sorted here.
package polarization

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Code is a linear polarization transmit/receive pair.
type Code string

const (
	VV Code = "VV"
	VH Code = "VH"
	HV Code = "HV"
	HH Code = "HH"
)

// Codes is the fixed search order. Do not reorder: it decides which code a
// name with several embedded codes resolves to.
var Codes = []Code{VV, VH, HV, HH}

// AnnotationSuffix marks annotation files.
const AnnotationSuffix = ".ann"

// ErrNoMatchingAnnotation is returned when a data file cannot be paired.
var ErrNoMatchingAnnotation = errors.New("no matching annotation")

// Pair is one data file with its annotation.
type Pair struct {
	Data       string
	Annotation string
	Code       Code
}

// IsAnnotation reports whether path names an annotation file.
func IsAnnotation(path string) bool {
	return strings.Contains(filepath.Base(path), AnnotationSuffix)
}

// Partition splits paths into annotation and data files, preserving order.
func Partition(paths []string) (annotations, data []string) {
	for _, p := range paths {
		if IsAnnotation(p) {
			annotations = append(annotations, p)
		} else {
			data = append(data, p)
		}
	}
	return annotations, data
}

// CodeOf returns the first code in Codes that appears in path's base name.
func CodeOf(path string) (Code, bool) {
	base := filepath.Base(path)
	for _, c := range Codes {
		if strings.Contains(base, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Index maps each code to the annotation chosen for it.
type Index map[Code]string

// Lookup resolves the annotation for a data file.
func (idx Index) Lookup(dataPath string) (string, error) {
	code, ok := CodeOf(dataPath)
	if !ok {
		return "", fmt.Errorf("%w: %s carries no polarization code (want one of %v)",
			ErrNoMatchingAnnotation, filepath.Base(dataPath), Codes)
	}
	ann, ok := idx[code]
	if !ok {
		return "", fmt.Errorf("%w: no %s annotation for %s",
			ErrNoMatchingAnnotation, code, filepath.Base(dataPath))
	}
	return ann, nil
}

// Matcher builds indexes and pairs. Warnf receives recoverable conditions;
// nil discards them.
type Matcher struct {
	Warnf func(format string, args ...interface{})
}

func (m Matcher) warnf(format string, args ...interface{}) {
	if m.Warnf != nil {
		m.Warnf(format, args...)
	}
}

// Index builds the code → annotation mapping from a mixed file listing.
// Having no annotation files at all is reported through Warnf and yields an
// empty index rather than an error; the failure surfaces per data file on
// Lookup. When several annotations contain the same code the first one
// listed is used.
func (m Matcher) Index(paths []string) Index {
	annotations, _ := Partition(paths)
	idx := make(Index, len(Codes))

	if len(annotations) == 0 {
		m.warnf("no annotation file found among %d files", len(paths))
		return idx
	}

	for _, c := range Codes {
		var found []string
		for _, a := range annotations {
			if strings.Contains(filepath.Base(a), string(c)) {
				found = append(found, a)
			}
		}
		if len(found) == 0 {
			continue
		}
		if len(found) > 1 {
			m.warnf("%d annotation files match %s; using %s", len(found), c, filepath.Base(found[0]))
		}
		idx[c] = found[0]
	}
	return idx
}

// Pair matches every data file in paths with its annotation, in listing
// order. It stops at the first data file that cannot be matched.
func (m Matcher) Pair(paths []string) ([]Pair, error) {
	idx := m.Index(paths)
	_, data := Partition(paths)

	pairs := make([]Pair, 0, len(data))
	for _, d := range data {
		ann, err := idx.Lookup(d)
		if err != nil {
			return pairs, err
		}
		code, _ := CodeOf(d)
		pairs = append(pairs, Pair{Data: d, Annotation: ann, Code: code})
	}
	return pairs, nil
}
