package reconcile

import (
	"log/slog"
	"time"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
)

// Reconcile compares a fresh observation with the persisted history of the
// same pair. It reports whether the latest version moved and returns the
// record to persist. prior may be nil on the first cycle and is never
// modified.
func Reconcile(prior *model.PersistedHistory, observed model.ObservedState, now time.Time) model.Verdict {
	previous := previousVersion(prior)
	latest := latestVersion(observed)

	transitioned := latest != nil && (previous == nil || *latest != *previous)

	record := model.PersistedHistory{Entries: []model.VersionEntry{}}
	if prior != nil {
		record.AppID = prior.AppID
		record.Country = prior.Country
		record.Entries = append(record.Entries, prior.Entries...)
	}

	// Only the newest scraped entry is considered; older ones in the same
	// batch are never backfilled.
	if len(observed.Extraction.Entries) > 0 {
		head := observed.Extraction.Entries[0]
		switch {
		case head.Version == nil:
			slog.Debug("reconcile: newest entry has no version, history unchanged")
		case containsVersion(record.Entries, *head.Version):
			slog.Debug("reconcile: version already in history", "version", *head.Version)
		default:
			slog.Info("reconcile: prepending new version", "version", *head.Version)
			record.Entries = append([]model.VersionEntry{head}, record.Entries...)
		}
	}

	record.LastMetadata = observed.Metadata
	record.UpdatedAt = now

	return model.Verdict{
		Transitioned:    transitioned,
		LatestVersion:   latest,
		PreviousVersion: previous,
		Record:          record,
	}
}

func previousVersion(prior *model.PersistedHistory) *string {
	if prior == nil {
		return nil
	}
	if prior.LastMetadata != nil && prior.LastMetadata.Version != nil {
		return prior.LastMetadata.Version
	}
	if len(prior.Entries) > 0 {
		return prior.Entries[0].Version
	}
	return nil
}

func latestVersion(observed model.ObservedState) *string {
	if observed.Metadata != nil && observed.Metadata.Version != nil {
		return observed.Metadata.Version
	}
	if len(observed.Extraction.Entries) > 0 {
		return observed.Extraction.Entries[0].Version
	}
	return nil
}

func containsVersion(entries []model.VersionEntry, version string) bool {
	for _, e := range entries {
		if e.Version != nil && *e.Version == version {
			return true
		}
	}
	return false
}
