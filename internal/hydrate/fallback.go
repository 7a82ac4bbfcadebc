package hydrate

import (
	"fmt"

	"github.com/lepinkainen/shelfmate/internal/book"
)

// FallbackDescription builds a deterministic last-resort summary from the
// fields the record already has. Description hydration never comes back
// empty because of it. The enrichment scheduler recognizes this template
// as a poor description and keeps trying to replace it.
func FallbackDescription(rec *book.Record) string {
	if rec.PageCount > 0 {
		return fmt.Sprintf("Book by %s, approximately %d pages.", rec.AuthorLine(), rec.PageCount)
	}
	return fmt.Sprintf("Book by %s.", rec.AuthorLine())
}
