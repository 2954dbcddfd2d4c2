package crawling

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// DocumentKey identifies one of the curriculum documents expected per direction.
type DocumentKey string

const (
	// KeyExemplary is the exemplary curriculum
	KeyExemplary DocumentKey = "exemplary"
	// KeyIndividual is the individual study plan
	KeyIndividual DocumentKey = "individual"
	// KeyElective is the list of recommended elective modules
	KeyElective DocumentKey = "elective"
)

// TargetDocument describes how a document's anchor is recognised and where it is stored.
type TargetDocument struct {
	Key DocumentKey
	// Prefix must match at the start of the anchor text.
	Prefix *regexp.Regexp
	// Qualifier, when set, must also occur in the text following the prefix.
	Qualifier *regexp.Regexp
	Filename  string
}

// Matches reports whether the normalized anchor text selects this document.
func (d TargetDocument) Matches(text string) bool {
	loc := d.Prefix.FindStringIndex(text)
	if loc == nil || loc[0] != 0 {
		return false
	}
	if d.Qualifier == nil {
		return true
	}
	return d.Qualifier.MatchString(text[loc[1]:])
}

// Targets is an ordered, immutable set of target documents.
type Targets struct {
	docs []TargetDocument
}

// NewTargets builds a target set. Keys and filenames must be unique, and
// filenames must be plain file names.
func NewTargets(docs ...TargetDocument) (Targets, error) {
	keys := make(map[DocumentKey]bool, len(docs))
	files := make(map[string]bool, len(docs))
	for _, d := range docs {
		switch {
		case d.Key == "":
			return Targets{}, fmt.Errorf("target document without key")
		case d.Prefix == nil:
			return Targets{}, fmt.Errorf("target %q has no prefix pattern", d.Key)
		case d.Filename == "" || filepath.Base(d.Filename) != d.Filename:
			return Targets{}, fmt.Errorf("target %q has invalid filename %q", d.Key, d.Filename)
		case keys[d.Key]:
			return Targets{}, fmt.Errorf("duplicate target key %q", d.Key)
		case files[d.Filename]:
			return Targets{}, fmt.Errorf("duplicate target filename %q", d.Filename)
		}
		keys[d.Key] = true
		files[d.Filename] = true
	}
	return Targets{docs: append([]TargetDocument(nil), docs...)}, nil
}

// DefaultTargets returns the three curriculum documents, German and English
// link texts alike.
func DefaultTargets() Targets {
	targets, err := NewTargets(
		TargetDocument{
			Key:      KeyExemplary,
			Prefix:   regexp.MustCompile(`(?i)^(Exemplarischer\s+Studienplan|Exemplary\s+Curriculum)\b`),
			Filename: "Exemplary_Curriculum.pdf",
		},
		TargetDocument{
			Key:       KeyIndividual,
			Prefix:    regexp.MustCompile(`(?i)^(Individueller\s+Studienplan|Individual\s+Study\s+Plan)\b`),
			Qualifier: regexp.MustCompile(`(?i)(ab\s+WS\s+2018/19|starting\s+from\s+winter\s+semester\s+2018/19)`),
			Filename:  "Individual_Study_Plan.pdf",
		},
		TargetDocument{
			Key:      KeyElective,
			Prefix:   regexp.MustCompile(`(?i)^(Empfohlene\s+Wahlmodule|Recommended\s+Elective\s+Modules)\b`),
			Filename: "Recommended_Elective_Modules.pdf",
		},
	)
	if err != nil {
		panic(err)
	}
	return targets
}

// All returns the targets in classification order.
func (t Targets) All() []TargetDocument {
	return append([]TargetDocument(nil), t.docs...)
}

// Len returns the number of targets.
func (t Targets) Len() int {
	return len(t.docs)
}

// Lookup returns the target with the given key.
func (t Targets) Lookup(key DocumentKey) (TargetDocument, bool) {
	for _, d := range t.docs {
		if d.Key == key {
			return d, true
		}
	}
	return TargetDocument{}, false
}

// Classify tests the anchor text against each target in order and returns the
// first match. A text whose prefix matches but whose qualifier does not is
// still tested against the remaining targets.
func (t Targets) Classify(text string) (TargetDocument, bool) {
	text = NormalizeText(text)
	if text == "" {
		return TargetDocument{}, false
	}
	for _, d := range t.docs {
		if d.Matches(text) {
			return d, true
		}
	}
	return TargetDocument{}, false
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// NormalizeText strips non-printable characters and collapses whitespace runs.
func NormalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}
