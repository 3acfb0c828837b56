// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sonarr

import (
	"sort"
	"time"
)

// EpisodeFilter narrows a series' episode list to the entries a source
// may advertise.
type EpisodeFilter struct {
	// Season selects one season; a negative value means every regular
	// season. Specials (season 0) are only included when requested
	// explicitly.
	Season int
	// AsOf is the cut-off instant: only episodes that have aired at or
	// before it qualify. Nil admits nothing that has not been downloaded.
	AsOf *time.Time
	// IncludeDownloaded keeps episodes Sonarr already has a file for.
	IncludeDownloaded bool
}

// FilterEpisodes applies the filter and returns the survivors sorted by
// season then episode number.
func FilterEpisodes(episodes []Episode, filter EpisodeFilter) []Episode {
	var matched []Episode
	for _, ep := range episodes {
		if !seasonMatches(filter.Season, ep.SeasonNumber) {
			continue
		}
		if ep.AirDateUTC == nil {
			continue
		}
		if ep.HasFile && !filter.IncludeDownloaded {
			continue
		}
		if filter.AsOf == nil || ep.AirDateUTC.After(*filter.AsOf) {
			if !ep.HasFile {
				continue
			}
		}
		matched = append(matched, ep)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SeasonNumber != matched[j].SeasonNumber {
			return matched[i].SeasonNumber < matched[j].SeasonNumber
		}
		return matched[i].EpisodeNumber < matched[j].EpisodeNumber
	})
	return matched
}

// LastAired returns the most recent air date among the episodes, or nil
// when none of them carries one.
func LastAired(episodes []Episode) *time.Time {
	var last *time.Time
	for _, ep := range episodes {
		if ep.AirDateUTC == nil {
			continue
		}
		if last == nil || ep.AirDateUTC.After(*last) {
			t := *ep.AirDateUTC
			last = &t
		}
	}
	return last
}

func seasonMatches(want, got int) bool {
	if want < 0 {
		return got > 0
	}
	return want == got
}
