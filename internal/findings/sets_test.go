package findings

import "testing"

func result(rule, path, lines string, line int) RawResult {
	return RawResult{
		CheckID: rule,
		Path:    path,
		Start:   RawPosition{Line: line, Col: 1},
		End:     RawPosition{Line: line, Col: 20},
		Extra:   RawExtra{Lines: lines, Severity: "ERROR"},
	}
}

func addAll(t *testing.T, s *FindingSets, baseline bool, raws ...RawResult) {
	t.Helper()
	for _, raw := range raws {
		key, f, err := NormalizeResult(raw, nil)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if baseline {
			s.AddBaseline(key, f)
		} else {
			s.AddCurrent(key, f)
		}
	}
}

func TestNewSurplusOccurrencesOnly(t *testing.T) {
	// Three identical occurrences in baseline, five in current: indices 0-2
	// match positionally, 3 and 4 are new.
	s := NewSets()
	dup := result("r.dup", "dup.go", "copyPasted()", 1)
	addAll(t, s, true, dup, dup, dup)
	addAll(t, s, false, dup, dup, dup, dup, dup)

	got := s.New()
	if len(got) != 2 {
		t.Fatalf("expected 2 new findings, got %d", len(got))
	}
	indices := map[int]bool{}
	for _, f := range got {
		indices[f.Index] = true
	}
	if !indices[3] || !indices[4] {
		t.Fatalf("expected surplus indices 3 and 4, got %v", indices)
	}
}

func TestNewEmptyBaseline(t *testing.T) {
	s := NewSets()
	addAll(t, s, false, result("r1", "a.go", "x", 1))

	got := s.New()
	if len(got) != 1 {
		t.Fatalf("expected 1 new finding, got %d", len(got))
	}
	if got[0].Index != 0 {
		t.Fatalf("expected index 0, got %d", got[0].Index)
	}
}

func TestNewDisappearanceIsNotNew(t *testing.T) {
	s := NewSets()
	addAll(t, s, true, result("r1", "a.go", "x", 1))

	if got := s.New(); len(got) != 0 {
		t.Fatalf("disappearance reported as new: %v", got)
	}
}

func TestNewSelfDiffIsEmpty(t *testing.T) {
	s := NewSets()
	raws := []RawResult{
		result("r1", "a.go", "x", 1),
		result("r1", "a.go", "x", 7),
		result("r2", "b.go", "y", 3),
	}
	addAll(t, s, true, raws...)
	addAll(t, s, false, raws...)

	if got := s.New(); len(got) != 0 {
		t.Fatalf("self diff must be empty, got %d findings", len(got))
	}
}

func TestNewIgnoresLineShifts(t *testing.T) {
	// The same issue moved down 40 lines is still the same issue.
	s := NewSets()
	addAll(t, s, true, result("r1", "a.go", "dangerous()", 10))
	addAll(t, s, false, result("r1", "a.go", "dangerous()", 50))

	if got := s.New(); len(got) != 0 {
		t.Fatalf("line shift reported as new: %v", got)
	}
}

func TestNewOutputIsSorted(t *testing.T) {
	s := NewSets()
	addAll(t, s, false,
		result("r1", "z.go", "a", 5),
		result("r1", "a.go", "b", 9),
		result("r1", "a.go", "c", 2),
	)

	got := s.New()
	if len(got) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(got))
	}
	if got[0].Path != "a.go" || got[0].Line != 2 {
		t.Fatalf("unexpected first finding: %+v", got[0])
	}
	if got[2].Path != "z.go" {
		t.Fatalf("unexpected last finding: %+v", got[2])
	}
}
