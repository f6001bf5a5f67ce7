package findings

import "sort"

// FindingSets holds the raw findings of the two snapshots of one scan run,
// keyed by FindingKey in first-seen order. It is built once per run, read
// when computing the diff and discarded afterwards.
type FindingSets struct {
	Baseline map[FindingKey][]Finding
	Current  map[FindingKey][]Finding
}

// NewSets returns empty finding sets for one comparison run.
func NewSets() *FindingSets {
	return &FindingSets{
		Baseline: make(map[FindingKey][]Finding),
		Current:  make(map[FindingKey][]Finding),
	}
}

// AddBaseline appends a baseline-snapshot finding to its key group.
func (s *FindingSets) AddBaseline(key FindingKey, f Finding) {
	s.Baseline[key] = append(s.Baseline[key], f)
}

// AddCurrent appends a current-snapshot finding to its key group.
func (s *FindingSets) AddCurrent(key FindingKey, f Finding) {
	s.Current[key] = append(s.Current[key], f)
}

// New returns the findings present in the current snapshot but not in the
// baseline. Each key group is expanded positionally: the n-th occurrence of a
// key in one snapshot is matched against the n-th occurrence in the other.
// When the current snapshot has more occurrences of a key than the baseline,
// the surplus tail counts as new.
//
// This is a best-effort heuristic, not content-aware matching: it can
// misattribute occurrences when the engine does not report them in a stable
// order. Downstream consumers depend on this exact policy; do not make it
// smarter.
//
// The result is sorted by (path, line, identifier) for deterministic output.
func (s *FindingSets) New() []Finding {
	baseline := expand(s.Baseline)
	current := expand(s.Current)

	var out []Finding
	for id, f := range current {
		if _, ok := baseline[id]; !ok {
			out = append(out, f)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].SyntacticIDString() < out[j].SyntacticIDString()
	})
	return out
}

// expand assigns every list member its positional index within its key group
// and collects all findings into one identity-keyed set.
func expand(m map[FindingKey][]Finding) map[identity]Finding {
	set := make(map[identity]Finding)
	for _, group := range m {
		for index, f := range group {
			indexed := f.withIndex(index)
			set[indexed.identity()] = indexed
		}
	}
	return set
}
