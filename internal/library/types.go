package library

import (
	"errors"
	"time"
)

// ErrNoChannelMatch means no channel scored at or above MatchThreshold.
var ErrNoChannelMatch = errors.New("no matching channel")

const (
	// MatchThreshold is the lowest accepted fuzzy score (0-100).
	MatchThreshold = 60
	// ConfidentMatch is the score below which a match is logged as a warning.
	ConfidentMatch = 80

	DefaultDays = 7

	untitledEpisode = "Untitled Episode"
	unknownPodcast  = "Unknown Podcast"
)

// Query selects episodes played within the last Days days, optionally
// restricted to the channel that best matches Channel.
type Query struct {
	Days    int
	Channel string
	// Now anchors the window; zero means time.Now.
	Now time.Time
}

// Channel is one subscribed podcast.
type Channel struct {
	Name         string
	Author       string
	StoreID      int64
	EpisodeCount int
}

// Match is a channel name with its similarity score.
type Match struct {
	Name  string
	Score int
}

// Stats summarizes the podcast library.
type Stats struct {
	Episodes            int64
	Podcasts            int64
	WithTranscripts     int64
	RecentlyPlayed30d   int64
	CachedTranscripts   int
	TranscriptCachePath string
}
