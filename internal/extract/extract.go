// Package extract pulls version history out of App Store listing markup.
//
// The listing page changes shape without notice, so extraction is an ordered
// cascade of independent strategies. Newer page structures are tried first and
// the first strategy that yields at least one entry wins; the final strategy
// reads the page description and only fails when the page has none.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

// Strategy names, in cascade order.
const (
	StrategyWhatsNew       = "whats-new"
	StrategyVersionHistory = "version-history"
	StrategyLoose          = "loose"
	StrategyDescription    = "description"
)

type strategy struct {
	name string
	run  func(doc *goquery.Document) []model.VersionEntry
}

var cascade = []strategy{
	{StrategyWhatsNew, whatsNew},
	{StrategyVersionHistory, versionHistory},
	{StrategyLoose, loose},
	{StrategyDescription, description},
}

var versionToken = regexp.MustCompile(`[0-9]+\.[0-9]+(?:\.[0-9]+)*`)

// Extract runs the cascade over markup and returns the name of the strategy
// that produced entries together with the entries, most recent first. When no
// strategy matches, the name is empty and entries is an empty slice.
func Extract(markup string) (string, []model.VersionEntry) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Warn("extract: parse markup failed", "error", err)
		return "", []model.VersionEntry{}
	}

	for _, s := range cascade {
		entries := s.run(doc)
		if len(entries) > 0 {
			slog.Debug("extract: strategy matched", "strategy", s.name, "entries", len(entries))
			return s.name, entries
		}
		slog.Debug("extract: strategy found nothing", "strategy", s.name)
	}

	slog.Info("extract: no strategy produced entries")
	return "", []model.VersionEntry{}
}

// whatsNew reads the single "what's new" block of the current page layout.
func whatsNew(doc *goquery.Document) []model.VersionEntry {
	section := doc.Find("section.whats-new").First()
	if section.Length() == 0 {
		return nil
	}

	label := strings.TrimSpace(section.Find(".whats-new__latest__version").First().Text())
	version := label
	if m := versionToken.FindString(label); m != "" {
		version = m
	}

	entry := model.VersionEntry{
		Version: model.Str(version),
		Date:    sectionDate(section),
		Notes:   model.Str(textWithBreaks(section.Find(".we-truncate[dir] p").First())),
	}
	if !entry.Valid() {
		return nil
	}
	return []model.VersionEntry{entry}
}

// versionHistory reads the itemised history list of the older layout.
func versionHistory(doc *goquery.Document) []model.VersionEntry {
	return eachItem(doc.Find(".version-history__item"), func(item *goquery.Selection) model.VersionEntry {
		return model.VersionEntry{
			Version: firstText(item, ".version-history__item__version-number", "h4"),
			Date:    timeOf(item),
			Notes:   firstNotes(item, ".version-history__item__release-notes", ".whats-new__content"),
		}
	})
}

// loose matches generic release-note blocks with broad selectors.
func loose(doc *goquery.Document) []model.VersionEntry {
	return eachItem(doc.Find(".whats-new__item, .release-note, .version"), func(item *goquery.Selection) model.VersionEntry {
		return model.VersionEntry{
			Version: firstText(item, ".whats-new__title, h4, .version-number"),
			Date:    timeOf(item),
			Notes:   firstNotes(item, ".whats-new__content, .release-notes, p"),
		}
	})
}

// description falls back to the page summary text.
func description(doc *goquery.Document) []model.VersionEntry {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		content, _ := doc.Find(sel).First().Attr("content")
		if notes := model.Str(content); notes != nil {
			return []model.VersionEntry{{Notes: notes}}
		}
	}
	return nil
}

func eachItem(items *goquery.Selection, read func(*goquery.Selection) model.VersionEntry) []model.VersionEntry {
	var entries []model.VersionEntry
	items.Each(func(_ int, item *goquery.Selection) {
		if entry := read(item); entry.Valid() {
			entries = append(entries, entry)
		}
	})
	return entries
}

// sectionDate looks for any <time> carrying a datetime attribute before
// falling back to the displayed text of the first one.
func sectionDate(sel *goquery.Selection) *string {
	if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
		if v := model.Str(dt); v != nil {
			return v
		}
	}
	return model.Str(sel.Find("time").First().Text())
}

// timeOf prefers the machine-readable datetime attribute over displayed text.
func timeOf(sel *goquery.Selection) *string {
	t := sel.Find("time").First()
	if dt, ok := t.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return model.Str(dt)
	}
	return model.Str(t.Text())
}

func firstText(sel *goquery.Selection, selectors ...string) *string {
	for _, s := range selectors {
		if v := model.Str(sel.Find(s).First().Text()); v != nil {
			return v
		}
	}
	return nil
}

func firstNotes(sel *goquery.Selection, selectors ...string) *string {
	for _, s := range selectors {
		if v := model.Str(textWithBreaks(sel.Find(s).First())); v != nil {
			return v
		}
	}
	return nil
}

// textWithBreaks returns the text of sel with <br> elements turned into
// newlines. The document itself is left untouched.
func textWithBreaks(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	c := sel.Clone()
	c.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: "\n"})
	})
	return strings.TrimSpace(c.Text())
}
