package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/cache"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/pipeline"
)

type cycleCall struct {
	appID, country, lang string
}

type fakeTracker struct {
	saved    *model.PersistedHistory
	savedErr error
	snapshot pipeline.Snapshot
	verdict  model.Verdict
	cycleErr error

	cycles []cycleCall
}

func (f *fakeTracker) RunCycle(_ context.Context, appID, country, lang string) (model.Verdict, error) {
	f.cycles = append(f.cycles, cycleCall{appID, country, lang})
	return f.verdict, f.cycleErr
}

func (f *fakeTracker) Snapshot(_ context.Context, _, _ string) (pipeline.Snapshot, error) {
	return f.snapshot, f.savedErr
}

func (f *fakeTracker) Saved(_ context.Context, _, _ string) (*model.PersistedHistory, error) {
	return f.saved, f.savedErr
}

func newTestServer(t *testing.T, tr *fakeTracker) (*httptest.Server, *cache.Cache) {
	t.Helper()
	cfg := &config.Config{
		AppID:          "1190307500",
		DefaultCountry: "vn",
		AllowedOrigins: []string{"https://tracker.example"},
	}
	c := cache.New()
	ts := httptest.NewServer(New(cfg, c, tr).Router())
	t.Cleanup(ts.Close)
	return ts, c
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHistory(t *testing.T) {
	tr := &fakeTracker{snapshot: pipeline.Snapshot{
		SavedHistory:  &model.PersistedHistory{AppID: "1190307500", Country: "vn", Entries: []model.VersionEntry{{Version: model.Str("2.0.1")}}},
		FreshMetadata: &model.MetadataRecord{Version: model.Str("2.0.1")},
	}}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Get(ts.URL + "/api/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decode(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "vn", body["country"])
	assert.Equal(t, "2.0.1", body["freshMetadata"].(map[string]any)["version"])
	saved := body["savedHistory"].(map[string]any)
	assert.Len(t, saved["entries"], 1)
}

func TestHistoryEmptyPair(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/api/history?country=us")
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Nil(t, body["savedHistory"])
	assert.Nil(t, body["freshMetadata"])
}

func TestHistoryRejectsBadCountry(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/api/history?country=usa")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["ok"])
}

func TestHistoryRejectsBadAppID(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/api/history?appId=" + url.QueryEscape("../x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["ok"])
}

func TestHistoryMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Post(ts.URL+"/api/history", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHistoryStoreError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{savedErr: errors.New("db down")})

	resp, err := http.Get(ts.URL + "/api/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["ok"])
}

func TestChangelogServesSaved(t *testing.T) {
	tr := &fakeTracker{saved: &model.PersistedHistory{AppID: "1", Country: "us", Entries: []model.VersionEntry{}}}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Get(ts.URL + "/api/changelog?appId=1&country=us")
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, "saved", body["from"])
	assert.Empty(t, tr.cycles)
}

func TestChangelogRunsLiveCycleOnMiss(t *testing.T) {
	tr := &fakeTracker{verdict: model.Verdict{
		Transitioned:  true,
		LatestVersion: model.Str("3.0"),
		Record:        model.PersistedHistory{AppID: "1190307500", Country: "vn", Entries: []model.VersionEntry{{Version: model.Str("3.0")}}},
	}}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Get(ts.URL + "/api/changelog")
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, "live", body["from"])
	assert.Equal(t, "1190307500", body["data"].(map[string]any)["appId"])
	require.Len(t, tr.cycles, 1)
	assert.Equal(t, cycleCall{"1190307500", "vn", "vi"}, tr.cycles[0])
}

func TestRefresh(t *testing.T) {
	tr := &fakeTracker{verdict: model.Verdict{
		Transitioned:    true,
		LatestVersion:   model.Str("2.1"),
		PreviousVersion: model.Str("2.0"),
	}}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json",
		strings.NewReader(`{"appId":"42","country":"US"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["changed"])
	assert.Equal(t, "2.1", result["latestVersion"])
	assert.Equal(t, "2.0", result["prevLatest"])
	assert.Equal(t, []cycleCall{{"42", "us", "en"}}, tr.cycles)
}

func TestRefreshDefaultsWithEmptyBody(t *testing.T) {
	tr := &fakeTracker{}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, []cycleCall{{"1190307500", "vn", "vi"}}, tr.cycles)
}

func TestRefreshExplicitLang(t *testing.T) {
	tr := &fakeTracker{}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json",
		strings.NewReader(`{"country":"vn","lang":"en"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []cycleCall{{"1190307500", "vn", "en"}}, tr.cycles)
}

func TestRefreshErrors(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeTracker{})
		resp, err := http.Post(ts.URL+"/api/refresh", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("busy", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeTracker{cycleErr: pipeline.ErrBusy})
		resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["ok"])
	})

	t.Run("store failure", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeTracker{cycleErr: errors.New("save history: boom")})
		resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, decode(t, resp)["error"], "boom")
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, body := range []string{
			`{"appId":"../../lookup?id=9#"}`,
			`{"appId":"12a"}`,
			`{"lang":"en&x=1"}`,
			`{"country":"u#"}`,
		} {
			tr := &fakeTracker{}
			ts, _ := newTestServer(t, tr)
			resp, err := http.Post(ts.URL+"/api/refresh", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, false, decode(t, resp)["ok"])
			assert.Empty(t, tr.cycles, body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeTracker{})
		resp, err := http.Get(ts.URL + "/api/refresh")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	ts, c := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "last_update")

	c.SetHistory("history_1_vn", model.PersistedHistory{UpdatedAt: time.Now()})

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Contains(t, decode(t, resp), "last_update")
}

func TestCORS(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://tracker.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://tracker.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://tracker.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://localhost:5173")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
