package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/extract"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

// FetchListing downloads the localized listing page and runs the extraction
// cascade over it. The returned result always carries the URL that was
// requested, even when err is non-nil.
func (f *Fetcher) FetchListing(ctx context.Context, appID, country, lang string) (model.ExtractionResult, error) {
	page := f.ListingURL(appID, country)
	query := url.Values{"l": {lang}}
	result := model.ExtractionResult{SourceURL: page + "?" + query.Encode(), Entries: []model.VersionEntry{}}

	slog.Info("fetching listing page", "url", result.SourceURL)

	ctx, cancel := context.WithTimeout(ctx, listingTimeout)
	defer cancel()

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"User-Agent":      browserUserAgent,
			"Accept-Language": lang + ",en-US;q=0.9,en;q=0.8",
			"Accept":          htmlAccept,
		}).
		SetQueryParam("l", lang).
		Get(page)
	if err != nil {
		return result, fmt.Errorf("listing request: %w", err)
	}
	if resp.IsError() {
		return result, fmt.Errorf("listing page error: %d", resp.StatusCode())
	}

	result.Strategy, result.Entries = extract.Extract(resp.String())
	slog.Info("listing result", "url", result.SourceURL, "strategy", result.Strategy, "entries", len(result.Entries))
	return result, nil
}
