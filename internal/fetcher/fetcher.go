package fetcher

import (
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
)

// Fetcher holds the shared HTTP client and endpoints for both listing sources.
type Fetcher struct {
	client     *resty.Client
	lookupBase string
	storeBase  string
}

func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client:     resty.New(),
		lookupBase: cfg.LookupBaseURL,
		storeBase:  cfg.StoreBaseURL,
	}
}

// ListingURL returns the public App Store page of appID in country.
func (f *Fetcher) ListingURL(appID, country string) string {
	return fmt.Sprintf("%s/%s/app/id%s", f.storeBase, url.PathEscape(country), url.PathEscape(appID))
}
