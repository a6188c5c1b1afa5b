package polarization

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type warnRecorder struct {
	msgs []string
}

func (w *warnRecorder) Warnf(format string, args ...interface{}) {
	w.msgs = append(w.msgs, fmt.Sprintf(format, args...))
}

func TestPair_Scenario(t *testing.T) {
	paths := []string{"ann_VV.ann", "ann_HH.ann", "img_VV.bin", "img_HH.bin"}

	pairs, err := Matcher{}.Pair(paths)
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	want := []Pair{
		{Data: "img_VV.bin", Annotation: "ann_VV.ann", Code: VV},
		{Data: "img_HH.bin", Annotation: "ann_HH.ann", Code: HH},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestPair_AllFourCodesKeepListingOrder(t *testing.T) {
	paths := []string{
		"/x/scene_HH.ann", "/x/scene_HV.ann", "/x/scene_VH.ann", "/x/scene_VV.ann",
		"/x/scene_HV.grd", "/x/scene_VV.grd", "/x/scene_HH.grd", "/x/scene_VH.grd",
	}

	pairs, err := Matcher{}.Pair(paths)
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	var got []string
	for _, p := range pairs {
		got = append(got, p.Data+"->"+p.Annotation)
	}
	want := []string{
		"/x/scene_HV.grd->/x/scene_HV.ann",
		"/x/scene_VV.grd->/x/scene_VV.ann",
		"/x/scene_HH.grd->/x/scene_HH.ann",
		"/x/scene_VH.grd->/x/scene_VH.ann",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_NoAnnotationsWarns(t *testing.T) {
	var w warnRecorder
	idx := Matcher{Warnf: w.Warnf}.Index([]string{"img_VV.bin", "img_HH.bin"})

	if len(idx) != 0 {
		t.Errorf("expected empty index, got %v", idx)
	}
	if len(w.msgs) != 1 || !strings.Contains(w.msgs[0], "no annotation file found") {
		t.Errorf("expected a single no-annotation warning, got %q", w.msgs)
	}

	// Lookups then fail per file.
	if _, err := idx.Lookup("img_VV.bin"); !errors.Is(err, ErrNoMatchingAnnotation) {
		t.Errorf("expected ErrNoMatchingAnnotation, got %v", err)
	}
}

func TestIndex_NilWarnfIsSilent(t *testing.T) {
	idx := Matcher{}.Index(nil)
	if len(idx) != 0 {
		t.Errorf("expected empty index, got %v", idx)
	}
}

func TestPair_DataWithoutCodeFails(t *testing.T) {
	paths := []string{"ann_VV.ann", "img_VV.bin", "readme.txt", "img_VV2.bin"}

	pairs, err := Matcher{}.Pair(paths)
	if !errors.Is(err, ErrNoMatchingAnnotation) {
		t.Fatalf("expected ErrNoMatchingAnnotation, got %v", err)
	}
	if !strings.Contains(err.Error(), "readme.txt") {
		t.Errorf("error should name the file: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("expected the pair before the failure to be returned, got %d", len(pairs))
	}
}

func TestPair_CodeWithoutAnnotationFails(t *testing.T) {
	_, err := Matcher{}.Pair([]string{"ann_VV.ann", "img_HH.bin"})
	if !errors.Is(err, ErrNoMatchingAnnotation) {
		t.Fatalf("expected ErrNoMatchingAnnotation, got %v", err)
	}
	if !strings.Contains(err.Error(), "HH") {
		t.Errorf("error should name the code: %v", err)
	}
}

func TestCodeOf_FixedOrder(t *testing.T) {
	tests := []struct {
		name string
		want Code
		ok   bool
	}{
		{"img_VV.bin", VV, true},
		{"SanAnd_L090HHHH_CX_01.grd", HH, true},
		// HV precedes HH in the search order
		{"SanAnd_L090HHHV_CX_01.grd", HV, true},
		// VV is found before HH and HV
		{"SanAnd_L090HHVV_CX_01.grd", VV, true},
		// "HVVV" contains VV and HV; VV is searched first
		{"SanAnd_L090HVVV_CX_01.grd", VV, true},
		// VH straddles a token boundary and still wins over HH
		{"xVHHx.grd", VH, true},
		{"/dir_HH/img.bin", "", false},
		{"readme.txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CodeOf(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Errorf("CodeOf(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// Several annotations share a code: the first listed wins, so the result
// depends on the order the caller lists files in.
func TestIndex_AmbiguousTieBreakFirstListed(t *testing.T) {
	var w warnRecorder
	m := Matcher{Warnf: w.Warnf}

	idx := m.Index([]string{"b_VV.ann", "a_VV.ann", "img_VV.bin"})
	if idx[VV] != "b_VV.ann" {
		t.Errorf("expected first listed annotation, got %q", idx[VV])
	}
	if len(w.msgs) != 1 || !strings.Contains(w.msgs[0], "2 annotation files match VV") {
		t.Errorf("expected ambiguity warning, got %q", w.msgs)
	}

	idx = m.Index([]string{"a_VV.ann", "b_VV.ann"})
	if idx[VV] != "a_VV.ann" {
		t.Errorf("expected first listed annotation after reorder, got %q", idx[VV])
	}
}

func TestPartition(t *testing.T) {
	anns, data := Partition([]string{"a_VV.ann", "x.grd", "b_HH.ann", "y.grd"})
	if diff := cmp.Diff([]string{"a_VV.ann", "b_HH.ann"}, anns); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x.grd", "y.grd"}, data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}
