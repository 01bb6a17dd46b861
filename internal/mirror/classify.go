package mirror

import (
	"strings"

	"github.com/taxiline/taxiline/internal/districts"
)

// todayMask is stripped from the text before blacklist testing. Several
// blacklist terms are substrings of this word, which otherwise disqualifies
// ordinary "leaving today" postings.
const todayMask = "сегодня"

// TableProvider yields the routing table active at call time. The table is
// hot-reloadable, so classification must never cache a startup snapshot.
type TableProvider interface {
	Current() districts.Table
}

// Classification is the outcome of classifying one message text.
type Classification struct {
	// Blocked is true when a blacklist term matched; no districts are
	// reported in that case.
	Blocked bool
	// Matched lists the keys of every district whose keyword appeared,
	// in table order.
	Matched []string
	// Primary is the district owning the keyword at the earliest character
	// position in the text. Empty when Matched is empty.
	Primary string
}

// Classifier tests message texts against the district keyword tables and the
// global blacklist. It is a pure function over the text and the current
// table; the caller is responsible for minimum-length filtering.
type Classifier struct {
	tables TableProvider
}

// NewClassifier creates a Classifier reading tables from the given provider.
func NewClassifier(tables TableProvider) *Classifier {
	return &Classifier{tables: tables}
}

// Classify runs the blacklist check and district keyword matching.
//
// Matching is substring-based, not tokenized: a keyword may match inside a
// longer word. When keywords from several districts match, the district whose
// keyword occurs earliest in the text becomes Primary: postings put the
// pickup city first, so the earliest match approximates the origin region.
// Position ties keep the first district in table order.
func (c *Classifier) Classify(text string) Classification {
	tbl := c.tables.Current()
	lower := strings.ToLower(text)

	masked := strings.ReplaceAll(lower, todayMask, "")
	for _, term := range tbl.Blacklist {
		if term == "" {
			continue
		}
		if strings.Contains(masked, strings.ToLower(term)) {
			return Classification{Blocked: true}
		}
	}

	var cls Classification
	best := -1
	for _, d := range tbl.Districts {
		matched := false
		for _, kw := range d.Keywords {
			if kw == "" {
				continue
			}
			idx := strings.Index(lower, strings.ToLower(kw))
			if idx < 0 {
				continue
			}
			matched = true
			if best < 0 || idx < best {
				best = idx
				cls.Primary = d.Key
			}
		}
		if matched {
			cls.Matched = append(cls.Matched, d.Key)
		}
	}
	return cls
}
