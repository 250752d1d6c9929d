package parsing

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalProfileURL resolves href against the page URL and strips the query string,
// fragment and trailing slash, so tracking parameters do not make one profile look like many.
// A blank or fragment-only href has no profile and yields "".
func CanonicalProfileURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base, err := url.Parse(pageURL); err == nil {
		ref = base.ResolveReference(ref)
	}
	ref.RawQuery = ""
	ref.Fragment = ""
	return strings.TrimSuffix(ref.String(), "/")
}

var (
	pastPrefix = regexp.MustCompile(`(?i)^(past|previous(ly)?|formerly)\s*:?\s*`)
	atCompany  = regexp.MustCompile(`(?i)\s+(at|@)\s+.+$`)
)

// PriorPosition extracts the position from a summary line such as
// "Past: Senior Engineer at Globex". The company part is dropped.
func PriorPosition(summary string) string {
	s := CleanText(summary)
	if !pastPrefix.MatchString(s) {
		return ""
	}
	s = pastPrefix.ReplaceAllString(s, "")
	s = atCompany.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseChangeDate parses a datetime attribute as a calendar day.
func ParseChangeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{types.DateLayout, time.RFC3339, "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return types.DateOnly(t), true
		}
	}
	return time.Time{}, false
}
