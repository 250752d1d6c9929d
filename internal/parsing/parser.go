// Package parsing extracts job-change records from fetched result pages.
package parsing

import (
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/job-change-tracker/internal/fetch"
	"github.com/jonathan/job-change-tracker/internal/types"
)

// Selectors locate the fields of a result card.
type Selectors struct {
	Card          string `yaml:"card"`
	Name          string `yaml:"name"`
	Position      string `yaml:"position"`
	ProfileLink   string `yaml:"profile_link"`
	PriorPosition string `yaml:"prior_position"`
	ChangeDate    string `yaml:"change_date"`
}

// DefaultSelectors returns selectors for LinkedIn people/search result cards.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:          ".reusable-search__result-container",
		Name:          ".entity-result__title-text",
		Position:      ".entity-result__primary-subtitle",
		ProfileLink:   "a.app-aware-link",
		PriorPosition: ".entity-result__summary",
		ChangeDate:    "time[datetime]",
	}
}

// merge fills empty selectors from defaults.
func (s Selectors) merge(d Selectors) Selectors {
	if s.Card == "" {
		s.Card = d.Card
	}
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.Position == "" {
		s.Position = d.Position
	}
	if s.ProfileLink == "" {
		s.ProfileLink = d.ProfileLink
	}
	if s.PriorPosition == "" {
		s.PriorPosition = d.PriorPosition
	}
	if s.ChangeDate == "" {
		s.ChangeDate = d.ChangeDate
	}
	return s
}

// anonymousMember is the placeholder LinkedIn shows for profiles outside the viewer's network.
const anonymousMember = "linkedin member"

// Parser turns payloads into job-change records.
type Parser struct {
	sel Selectors
}

// New creates a parser. Empty selectors fall back to DefaultSelectors.
func New(sel Selectors) *Parser {
	return &Parser{sel: sel.merge(DefaultSelectors())}
}

// Parse extracts the records of one payload for the given company. Cards missing a name or
// a position are skipped. A payload that is not HTML or holds no cards yields an empty
// slice and a logged warning; Parse never fails a run.
func (p *Parser) Parse(payload fetch.Payload, company string) []types.JobChange {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.HTML))
	if err != nil {
		log.Printf("[PARSE] warning: %v", &ParseError{URL: payload.URL, Message: "unreadable HTML", Cause: err})
		return nil
	}

	cards := doc.Find(p.sel.Card)
	if cards.Length() == 0 {
		log.Printf("[PARSE] warning: no result cards in %s (selector %q)", payload.URL, p.sel.Card)
		return nil
	}

	var records []types.JobChange
	skipped := 0
	cards.Each(func(_ int, card *goquery.Selection) {
		rec, ok := p.parseCard(card, payload.URL, company)
		if !ok {
			skipped++
			return
		}
		records = append(records, rec)
	})

	if skipped > 0 {
		log.Printf("[PARSE] %s: skipped %d of %d cards without name or position", payload.URL, skipped, cards.Length())
	}
	return records
}

func (p *Parser) parseCard(card *goquery.Selection, pageURL, company string) (types.JobChange, bool) {
	name := cardName(card.Find(p.sel.Name).First())
	position := CleanText(card.Find(p.sel.Position).First().Text())
	if name == "" || position == "" || strings.EqualFold(name, anonymousMember) {
		return types.JobChange{}, false
	}

	rec := types.JobChange{
		PersonName:  name,
		Company:     company,
		NewPosition: position,
	}

	if href, ok := card.Find(p.sel.ProfileLink).First().Attr("href"); ok {
		rec.ProfileURL = CanonicalProfileURL(pageURL, href)
	}

	if prior := card.Find(p.sel.PriorPosition).First(); prior.Length() > 0 {
		rec.OldPosition = types.StringPtr(PriorPosition(prior.Text()))
	}

	if dt, ok := card.Find(p.sel.ChangeDate).First().Attr("datetime"); ok {
		if d, ok := ParseChangeDate(dt); ok {
			rec.ChangeDate = &d
		}
	}

	return rec, true
}

// cardName prefers the visually shown name over the screen-reader text LinkedIn nests in the title.
func cardName(sel *goquery.Selection) string {
	if visible := sel.Find("span[aria-hidden='true']").First(); visible.Length() > 0 {
		if name := CleanText(visible.Text()); name != "" {
			return name
		}
	}
	return CleanText(sel.Text())
}
