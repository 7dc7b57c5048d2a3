package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

const whatsNewPage = `<html><head>
<meta name="description" content="A monster catching game.">
</head><body>
<section class="whats-new">
  <h4 class="whats-new__latest__version">Phiên bản 2.4.10</h4>
  <time datetime="2026-10-01T00:00:00.000Z" aria-label="1 Oct 2026">1 thg 10, 2026</time>
  <div class="we-truncate" dir="">
    <p>Bug fixes<br>New monsters<br/>Faster loading</p>
  </div>
</section>
<div class="version-history__item">
  <h4 class="version-history__item__version-number">2.4.9</h4>
  <p class="version-history__item__release-notes">older</p>
</div>
</body></html>`

const versionHistoryPage = `<html><head>
<meta name="description" content="A monster catching game.">
</head><body>
<ol>
  <li class="version-history__item">
    <h4 class="version-history__item__version-number">3.1</h4>
    <time datetime="2026-09-02">2 Sep 2026</time>
    <div class="version-history__item__release-notes">Stability</div>
  </li>
  <li class="version-history__item">
    <h4>3.0</h4>
    <time>1 Aug 2026</time>
    <div class="whats-new__content">Big redesign</div>
  </li>
  <li class="version-history__item"><span>nothing here</span></li>
</ol>
</body></html>`

const loosePage = `<html><head>
<meta property="og:description" content="og text">
</head><body>
<div class="release-note">
  <span class="version-number">1.9.0</span>
  <time datetime="2025-01-01">Jan 1</time>
  <p>Notes for 1.9.0</p>
</div>
<div class="release-note">
  <h4>1.8.0</h4>
</div>
</body></html>`

func TestExtractWhatsNew(t *testing.T) {
	name, entries := Extract(whatsNewPage)
	require.Equal(t, StrategyWhatsNew, name)
	require.Len(t, entries, 1)

	e := entries[0]
	require.Equal(t, "2.4.10", model.Deref(e.Version))
	require.Equal(t, "2026-10-01T00:00:00.000Z", model.Deref(e.Date))
	require.Equal(t, "Bug fixes\nNew monsters\nFaster loading", model.Deref(e.Notes))
}

func TestExtractWhatsNewRawLabelAndTextDate(t *testing.T) {
	page := `<section class="whats-new">
  <h4 class="whats-new__latest__version">Latest build</h4>
  <time>yesterday</time>
</section>`

	name, entries := Extract(page)
	require.Equal(t, StrategyWhatsNew, name)
	require.Len(t, entries, 1)
	require.Equal(t, "Latest build", model.Deref(entries[0].Version))
	require.Equal(t, "yesterday", model.Deref(entries[0].Date))
	require.Nil(t, entries[0].Notes)
}

func TestExtractWhatsNewPrefersAnyDatetimeAttribute(t *testing.T) {
	page := `<section class="whats-new">
  <h4 class="whats-new__latest__version">Version 2.5</h4>
  <time>displayed</time>
  <time datetime="2026-10-01T00:00:00Z">Oct 1</time>
</section>`

	_, entries := Extract(page)
	require.Len(t, entries, 1)
	require.Equal(t, "2026-10-01T00:00:00Z", model.Deref(entries[0].Date))
}

func TestExtractEmptyWhatsNewFallsThrough(t *testing.T) {
	page := `<section class="whats-new"><h4 class="whats-new__latest__version"> </h4></section>
<div class="version-history__item"><h4>5.0</h4></div>`

	name, entries := Extract(page)
	require.Equal(t, StrategyVersionHistory, name)
	require.Len(t, entries, 1)
	require.Equal(t, "5.0", model.Deref(entries[0].Version))
}

func TestExtractVersionHistory(t *testing.T) {
	name, entries := Extract(versionHistoryPage)
	require.Equal(t, StrategyVersionHistory, name)
	require.Len(t, entries, 2)

	require.Equal(t, "3.1", model.Deref(entries[0].Version))
	require.Equal(t, "2026-09-02", model.Deref(entries[0].Date))
	require.Equal(t, "Stability", model.Deref(entries[0].Notes))

	require.Equal(t, "3.0", model.Deref(entries[1].Version))
	require.Equal(t, "1 Aug 2026", model.Deref(entries[1].Date))
	require.Equal(t, "Big redesign", model.Deref(entries[1].Notes))
}

func TestExtractLoose(t *testing.T) {
	name, entries := Extract(loosePage)
	require.Equal(t, StrategyLoose, name)
	require.Len(t, entries, 2)
	require.Equal(t, "1.9.0", model.Deref(entries[0].Version))
	require.Equal(t, "2025-01-01", model.Deref(entries[0].Date))
	require.Equal(t, "Notes for 1.9.0", model.Deref(entries[0].Notes))
	require.Equal(t, "1.8.0", model.Deref(entries[1].Version))
	require.Nil(t, entries[1].Notes)
	require.Nil(t, entries[1].Date)
}

func TestExtractDescriptionFallback(t *testing.T) {
	page := `<html><head><meta name="description" content="  Catch them all.  "></head><body><div>nothing</div></body></html>`

	name, entries := Extract(page)
	require.Equal(t, StrategyDescription, name)
	require.Equal(t, []model.VersionEntry{{Notes: model.Str("Catch them all.")}}, entries)
	require.Nil(t, entries[0].Version)
	require.Nil(t, entries[0].Date)
}

func TestExtractOpenGraphFallback(t *testing.T) {
	page := `<html><head><meta name="description" content=""><meta property="og:description" content="og text"></head></html>`

	name, entries := Extract(page)
	require.Equal(t, StrategyDescription, name)
	require.Len(t, entries, 1)
	require.Equal(t, "og text", model.Deref(entries[0].Notes))
}

func TestExtractNothing(t *testing.T) {
	name, entries := Extract(`<html><body><p>hello</p></body></html>`)
	require.Empty(t, name)
	require.NotNil(t, entries)
	require.Empty(t, entries)

	name, entries = Extract("")
	require.Empty(t, name)
	require.Empty(t, entries)
}

func TestExtractUsesSingleStrategy(t *testing.T) {
	// Every tier would match this page; only the first one may contribute.
	page := whatsNewPage + `<div class="release-note"><h4>0.1</h4></div>`

	name, entries := Extract(page)
	require.Equal(t, StrategyWhatsNew, name)
	require.Len(t, entries, 1)
	require.Equal(t, "2.4.10", model.Deref(entries[0].Version))
}

func TestTextWithBreaksLeavesDocumentIntact(t *testing.T) {
	_, first := Extract(whatsNewPage)
	_, second := Extract(whatsNewPage)
	require.Equal(t, first, second)
}
