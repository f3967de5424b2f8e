package browser

import (
	"strings"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

// soldOutMessage is the one banner text that confirms zero availability.
// Any other banner text is ambiguous; treating an unrecognized error as
// sold out would silently corrupt the snapshot.
const soldOutMessage = "No slots available on date selected"

// formProbe is one observation of the form's reactive output, read in a
// single JavaScript pass.
type formProbe struct {
	SlotsPresent bool   `json:"slotsPresent"`
	Slots        string `json:"slots"`
	Error        string `json:"error"`
}

// classify maps a form observation to a query outcome. The second return is
// false while neither mutually exclusive signal (populated slots field,
// error banner) has appeared yet and the caller should keep polling.
//
// An existing-but-empty slots field does not settle the query: the field
// renders before the AJAX validation fills it, and historical scraper
// variants that defaulted it to sold out mislabeled transient render states.
func classify(p formProbe) (crawl.Outcome, bool) {
	if banner := strings.TrimSpace(p.Error); banner != "" {
		if banner == soldOutMessage {
			return crawl.SoldOut(), true
		}
		return crawl.Ambiguous("unrecognized error banner: " + banner), true
	}
	if p.SlotsPresent {
		if slots := strings.TrimSpace(p.Slots); slots != "" {
			return crawl.Available(slots), true
		}
	}
	return crawl.Outcome{}, false
}
