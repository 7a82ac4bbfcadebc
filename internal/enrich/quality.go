package enrich

import (
	"regexp"

	"github.com/lepinkainen/shelfmate/internal/book"
)

// DefaultMinDescriptionLength is the shortest description considered
// good enough to skip re-enrichment.
const DefaultMinDescriptionLength = 40

// templatedDescriptions matches the generated fallback summaries so a
// record whose description came from the fallback is still treated as
// missing a real one.
var templatedDescriptions = []*regexp.Regexp{
	regexp.MustCompile(`^Book by .+, approximately \d+ pages\.$`),
	regexp.MustCompile(`^Book by .+\.$`),
}

// DescriptionPolicy decides when a description counts as poor. The zero
// value is not usable; construct with DefaultDescriptionPolicy and
// adjust.
type DescriptionPolicy struct {
	MinLength int
	Templates []*regexp.Regexp
}

// DefaultDescriptionPolicy returns the stock policy: minimum length plus
// the generated-fallback templates.
func DefaultDescriptionPolicy() DescriptionPolicy {
	return DescriptionPolicy{
		MinLength: DefaultMinDescriptionLength,
		Templates: templatedDescriptions,
	}
}

// Poor reports whether the description is missing, too short or matches
// a generated template.
func (p DescriptionPolicy) Poor(description string) bool {
	if len(description) < p.MinLength {
		return true
	}
	for _, re := range p.Templates {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}

// NeedsEnrichment reports whether the record should be queued: missing
// cover or page count, or a poor description.
func (p DescriptionPolicy) NeedsEnrichment(rec *book.Record) bool {
	if rec.CoverURL == "" || rec.PageCount == 0 {
		return true
	}
	return p.Poor(rec.Description)
}
