package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

// History loads and saves version histories in a KV backend.
type History struct {
	kv KV
}

func NewHistory(kv KV) *History {
	return &History{kv: kv}
}

// Key is the KV key of the history of appID in country.
func Key(appID, country string) string {
	return fmt.Sprintf("history_%s_%s", appID, country)
}

// Load returns the saved history, or nil when the pair has never been saved.
func (h *History) Load(ctx context.Context, appID, country string) (*model.PersistedHistory, error) {
	key := Key(appID, country)
	slog.Debug("store: loading history", "key", key)

	data, err := h.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if data == nil {
		return nil, nil
	}

	var rec model.PersistedHistory
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if rec.Entries == nil {
		rec.Entries = []model.VersionEntry{}
	}
	return &rec, nil
}

// Save writes rec under the key of appID and country.
func (h *History) Save(ctx context.Context, appID, country string, rec model.PersistedHistory) error {
	key := Key(appID, country)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := h.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	slog.Info("store: saved history", "key", key, "entries", len(rec.Entries), "bytes", len(data))
	return nil
}
