// Package findings holds the normalized finding model and the identity
// machinery used to tell new findings apart from pre-existing ones.
package findings

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

// Severity ordinals. Unrecognized severity strings degrade to SeverityOther.
const (
	SeverityOther   = 0
	SeverityWarning = 1
	SeverityError   = 2
)

// ActionsMetadataKey is the rule metadata key listing CI dispositions.
const ActionsMetadataKey = "dev.scanio.actions"

// FindingKey groups findings that share a rule, a file and the exact matched
// source text, ignoring occurrence order. Duplicated code blocks flagged by
// the same rule collapse into one key.
type FindingKey struct {
	RuleID           string
	Path             string
	SyntacticContext string
}

// RawResult is one match record as reported by the analysis engine.
// Line and column numbers are 1-based.
type RawResult struct {
	CheckID string      `json:"check_id"`
	Path    string      `json:"path"`
	Start   RawPosition `json:"start"`
	End     RawPosition `json:"end"`
	Extra   RawExtra    `json:"extra"`
}

// RawPosition is a 1-based line/column pair inside a raw match record.
type RawPosition struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// RawExtra carries the engine-specific payload of a raw match record.
type RawExtra struct {
	Lines    string                 `json:"lines"`
	Message  string                 `json:"message"`
	Severity string                 `json:"severity"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Finding is one normalized occurrence of a rule match.
//
// Equality and the syntactic identifier are derived from RuleID, Path, Index
// and SyntacticContext only. Location, message, severity and metadata are
// informational: they may change when surrounding code is edited without the
// finding becoming a different issue.
type Finding struct {
	RuleID           string
	Path             string
	Index            int
	SyntacticContext string

	Line       int
	Column     int
	EndLine    int
	EndColumn  int
	Message    string
	Severity   int
	Metadata   map[string]interface{}
	CommitDate *time.Time

	sid    [16]byte
	hasSID bool
}

// identity is the explicit identity key. It is the only thing compared when
// deciding whether two findings are the same issue.
type identity struct {
	ruleID  string
	path    string
	index   int
	context string
}

func (f Finding) identity() identity {
	return identity{ruleID: f.RuleID, path: f.Path, index: f.Index, context: f.SyntacticContext}
}

// NormalizeResult converts a raw engine record into a Finding plus its
// grouping key. The occurrence index is provisionally zero; the reconciliation
// step assigns the real index once all occurrences of a key are collected.
// Records without a rule id or path are input errors and are never dropped
// silently.
func NormalizeResult(raw RawResult, commitDate *time.Time) (FindingKey, Finding, error) {
	if raw.CheckID == "" {
		return FindingKey{}, Finding{}, fmt.Errorf("malformed result: missing check_id (path %q, line %d)", raw.Path, raw.Start.Line)
	}
	if raw.Path == "" {
		return FindingKey{}, Finding{}, fmt.Errorf("malformed result: missing path (check_id %q)", raw.CheckID)
	}

	context := Dedent(raw.Extra.Lines)
	key := FindingKey{
		RuleID:           raw.CheckID,
		Path:             raw.Path,
		SyntacticContext: context,
	}
	finding := Finding{
		RuleID:           raw.CheckID,
		Path:             raw.Path,
		Index:            0,
		SyntacticContext: context,
		Line:             raw.Start.Line,
		Column:           raw.Start.Col,
		EndLine:          raw.End.Line,
		EndColumn:        raw.End.Col,
		Message:          raw.Extra.Message,
		Severity:         SeverityOrdinal(raw.Extra.Severity),
		Metadata:         raw.Extra.Metadata,
		CommitDate:       commitDate,
	}
	finding.computeSID()
	return key, finding, nil
}

// SeverityOrdinal maps an engine severity string to its ordinal. Unknown
// strings, including case mismatches, never raise an error; they degrade to
// the lowest ordinal.
func SeverityOrdinal(severity string) int {
	switch severity {
	case "ERROR":
		return SeverityError
	case "WARNING":
		return SeverityWarning
	default:
		return SeverityOther
	}
}

// Blocking reports whether this finding should block CI. Rules opt out by
// listing dispositions without "block" under the actions metadata key; a
// missing or malformed key defaults to blocking.
func (f Finding) Blocking() bool {
	raw, ok := f.Metadata[ActionsMetadataKey]
	if !ok {
		return true
	}
	actions, ok := raw.([]interface{})
	if !ok {
		return true
	}
	for _, action := range actions {
		if s, ok := action.(string); ok && s == "block" {
			return true
		}
	}
	return false
}

// withIndex returns a copy of the finding carrying its positional index
// within its key group, with the identifier recomputed.
func (f Finding) withIndex(index int) Finding {
	f.Index = index
	f.computeSID()
	return f
}

func (f *Finding) computeSID() {
	var buf []byte
	buf = appendLenPrefixed(buf, f.RuleID)
	buf = appendLenPrefixed(buf, f.Path)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(f.Index))
	buf = append(buf, idx[:]...)
	buf = appendLenPrefixed(buf, f.SyntacticContext)

	h1, h2 := murmur3.Sum128(buf)
	binary.BigEndian.PutUint64(f.sid[:8], h1)
	binary.BigEndian.PutUint64(f.sid[8:], h2)
	f.hasSID = true
}

// appendLenPrefixed keeps the encoding unambiguous regardless of field
// contents: each string is preceded by its byte length.
func appendLenPrefixed(buf []byte, s string) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}

// SyntacticID returns the 128-bit content identifier of the finding, derived
// from (rule id, path, occurrence index, matched text). It is stable across
// runs, machines and platform endianness.
func (f Finding) SyntacticID() [16]byte {
	if !f.hasSID {
		f.computeSID()
	}
	return f.sid
}

// SyntacticIDString renders the identifier as 32 lowercase hex characters.
func (f Finding) SyntacticIDString() string {
	id := f.SyntacticID()
	return hex.EncodeToString(id[:])
}

// Dedent strips the longest common leading whitespace from every non-blank
// line, so indentation-only differences introduced by refactors do not change
// a finding's identity.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")

	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, margin) {
			margin = margin[:len(margin)-1]
		}
	}
	if margin == "" {
		return text
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}
