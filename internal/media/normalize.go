package media

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// textPolicy strips every tag; captions and overlays render as plain text.
var textPolicy = bluemonday.StrictPolicy()

// Normalize returns a copy of the item with user text cleaned up and
// defaults applied. Text is NFC normalized so identical captions compare
// equal regardless of the composing client.
func Normalize(it Item) Item {
	it.Caption = cleanText(it.Caption)
	it.Author.Username = norm.NFC.String(strings.TrimSpace(it.Author.Username))
	it.Author.DisplayName = cleanText(it.Author.DisplayName)

	if len(it.TextOverlays) > 0 {
		overlays := make([]TextOverlay, len(it.TextOverlays))
		for i, o := range it.TextOverlays {
			o.Text = cleanText(o.Text)
			overlays[i] = o
		}
		it.TextOverlays = overlays
	}
	if len(it.Links) > 0 {
		links := make([]Link, len(it.Links))
		for i, l := range it.Links {
			l.Label = cleanText(l.Label)
			l.URL = strings.TrimSpace(l.URL)
			links[i] = l
		}
		it.Links = links
	}
	if it.Widget != nil {
		w := *it.Widget
		w.Prompt = cleanText(w.Prompt)
		if len(w.Options) > 0 {
			opts := make([]string, len(w.Options))
			for i, o := range w.Options {
				opts[i] = cleanText(o)
			}
			w.Options = opts
		}
		it.Widget = &w
	}
	if it.Kind.Timed() && it.DurationHint <= 0 {
		it.DurationHint = DefaultDuration
	}
	return it
}

// NormalizeAll normalizes and validates a fetched page. Invalid items are
// dropped and returned separately so a single bad record never blocks the
// sequence.
func NormalizeAll(items []Item) (valid []*Item, rejected []error) {
	valid = make([]*Item, 0, len(items))
	for _, raw := range items {
		it := Normalize(raw)
		if err := it.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid = append(valid, &it)
	}
	return valid, rejected
}

func cleanText(s string) string {
	if s == "" {
		return s
	}
	return norm.NFC.String(strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s))))
}
