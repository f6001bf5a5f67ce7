package findings

import (
	"testing"
	"time"
)

func rawResult(checkID, path, lines string) RawResult {
	return RawResult{
		CheckID: checkID,
		Path:    path,
		Start:   RawPosition{Line: 10, Col: 5},
		End:     RawPosition{Line: 12, Col: 9},
		Extra: RawExtra{
			Lines:    lines,
			Message:  "something looks off",
			Severity: "ERROR",
		},
	}
}

func TestNormalizeResultIsDeterministic(t *testing.T) {
	now := time.Now()
	raw := rawResult("rules.hardcoded-secret", "internal/app/main.go", "\ttoken := \"hunter2\"")

	_, first, err := NormalizeResult(raw, &now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, second, err := NormalizeResult(raw, &now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if first.identity() != second.identity() {
		t.Fatalf("identities differ for the same raw record")
	}
	if first.SyntacticIDString() != second.SyntacticIDString() {
		t.Fatalf("identifiers differ: %s vs %s", first.SyntacticIDString(), second.SyntacticIDString())
	}
}

func TestNormalizeResultDedentsContext(t *testing.T) {
	raw := rawResult("rules.eval", "a.py", "        if eval(x):\n            run(x)")
	key, f, err := NormalizeResult(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "if eval(x):\n    run(x)"
	if f.SyntacticContext != want {
		t.Fatalf("context not dedented: %q", f.SyntacticContext)
	}
	if key.SyntacticContext != want {
		t.Fatalf("key context not dedented: %q", key.SyntacticContext)
	}
}

func TestNormalizeResultRejectsMalformedRecords(t *testing.T) {
	if _, _, err := NormalizeResult(RawResult{Path: "a.go"}, nil); err == nil {
		t.Fatalf("expected error for missing check_id")
	}
	if _, _, err := NormalizeResult(RawResult{CheckID: "r"}, nil); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestSyntacticIDStringIsFixedLengthHex(t *testing.T) {
	_, f, err := NormalizeResult(rawResult("r1", "p.go", "x := 1"), nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	id := f.SyntacticIDString()
	if len(id) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(id), id)
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("non-hex character %q in identifier %s", r, id)
		}
	}
}

func TestIdentityIgnoresInformationalFields(t *testing.T) {
	a := rawResult("r1", "p.go", "x := 1")
	b := rawResult("r1", "p.go", "x := 1")
	b.Start = RawPosition{Line: 99, Col: 1}
	b.Extra.Message = "different wording"
	b.Extra.Severity = "WARNING"

	_, fa, _ := NormalizeResult(a, nil)
	_, fb, _ := NormalizeResult(b, nil)

	if fa.identity() != fb.identity() {
		t.Fatalf("identity should ignore line, message and severity")
	}
	if fa.SyntacticIDString() != fb.SyntacticIDString() {
		t.Fatalf("identifier should ignore line, message and severity")
	}
}

func TestIndexChangesIdentity(t *testing.T) {
	_, f, _ := NormalizeResult(rawResult("r1", "p.go", "x := 1"), nil)
	other := f.withIndex(1)
	if f.identity() == other.identity() {
		t.Fatalf("index must be part of identity")
	}
	if f.SyntacticIDString() == other.SyntacticIDString() {
		t.Fatalf("index must be part of the identifier")
	}
}

func TestSeverityOrdinal(t *testing.T) {
	cases := map[string]int{
		"ERROR":   2,
		"WARNING": 1,
		"INFO":    0,
		"error":   0,
		"Warning": 0,
		"":        0,
		"BANANA":  0,
	}
	for in, want := range cases {
		if got := SeverityOrdinal(in); got != want {
			t.Fatalf("SeverityOrdinal(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBlocking(t *testing.T) {
	base := Finding{RuleID: "r", Path: "p"}

	if !base.Blocking() {
		t.Fatalf("missing metadata must default to blocking")
	}

	base.Metadata = map[string]interface{}{}
	if !base.Blocking() {
		t.Fatalf("missing actions key must default to blocking")
	}

	base.Metadata = map[string]interface{}{ActionsMetadataKey: []interface{}{"comment"}}
	if base.Blocking() {
		t.Fatalf("actions without block must not block")
	}

	base.Metadata = map[string]interface{}{ActionsMetadataKey: []interface{}{"comment", "block"}}
	if !base.Blocking() {
		t.Fatalf("actions listing block must block")
	}
}

func TestDedentKeepsBlankLines(t *testing.T) {
	in := "  a\n\n  b"
	want := "a\n\nb"
	if got := Dedent(in); got != want {
		t.Fatalf("Dedent(%q) = %q, want %q", in, got, want)
	}
}
