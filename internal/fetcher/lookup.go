package fetcher

import (
	"context"
	"log/slog"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

type lookupResponse struct {
	ResultCount int                    `json:"resultCount"`
	Results     []model.MetadataRecord `json:"results"`
}

// FetchMetadata queries the lookup endpoint for the latest published version.
// The record is advisory: any failure is logged and reported as ok=false.
func (f *Fetcher) FetchMetadata(ctx context.Context, appID, country string) (model.MetadataRecord, bool) {
	slog.Info("fetching lookup metadata", "app_id", appID, "country", country)

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var body lookupResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"id": appID, "country": country}).
		SetResult(&body).
		ForceContentType("application/json").
		Get(f.lookupBase + "/lookup")
	if err != nil {
		slog.Warn("lookup request failed", "app_id", appID, "country", country, "error", err)
		return model.MetadataRecord{}, false
	}
	if resp.IsError() {
		slog.Warn("lookup API error", "app_id", appID, "country", country, "status", resp.StatusCode())
		return model.MetadataRecord{}, false
	}
	if len(body.Results) == 0 {
		slog.Info("lookup returned no results", "app_id", appID, "country", country)
		return model.MetadataRecord{}, false
	}

	rec := normalize(body.Results[0])
	slog.Info("lookup result", "app_id", appID, "country", country, "version", model.Deref(rec.Version))
	return rec, true
}

// normalize turns empty or whitespace-only fields into absent ones.
func normalize(rec model.MetadataRecord) model.MetadataRecord {
	for _, field := range []**string{
		&rec.TrackName, &rec.Version, &rec.ReleaseNotes,
		&rec.TrackViewURL, &rec.CurrentVersionReleaseDate,
	} {
		if *field != nil {
			*field = model.Str(**field)
		}
	}
	return rec
}
