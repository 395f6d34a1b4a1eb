package library

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// coreDataEpoch is the zero point of Core Data timestamps.
var coreDataEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

const episodeQuery = `
	SELECT
		e.ZUUID,
		e.ZTITLE,
		p.ZTITLE,
		p.ZAUTHOR,
		e.ZDURATION,
		e.ZPUBDATE,
		e.ZLASTDATEPLAYED,
		e.ZENTITLEDTRANSCRIPTIDENTIFIER,
		e.ZENTITLEDTRANSCRIPTPROVIDER,
		e.ZFREETRANSCRIPTIDENTIFIER,
		e.ZFREETRANSCRIPTPROVIDER,
		e.ZASSETURL,
		e.ZSTORETRACKID
	FROM ZMTEPISODE e
	JOIN ZMTPODCAST p ON e.ZPODCAST = p.Z_PK
	WHERE e.ZLASTDATEPLAYED > ?`

// Discover returns episodes played inside the window, oldest play first, with
// TranscriptLocator set for every episode whose transcript is cached.
func (l *implLibrary) Discover(ctx context.Context, q Query) ([]models.Item, error) {
	days := q.Days
	if days <= 0 {
		days = DefaultDays
	}
	now := q.Now
	if now.IsZero() {
		now = l.now()
	}

	query := episodeQuery
	args := []any{toCoreData(now.AddDate(0, 0, -days))}

	if q.Channel != "" {
		match, err := l.MatchChannel(ctx, q.Channel)
		if err != nil {
			return nil, err
		}
		query += " AND p.ZTITLE = ?"
		args = append(args, match.Name)
	}
	query += " ORDER BY e.ZLASTDATEPLAYED ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	idx, err := l.index()
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].TranscriptLocator = idx.find(items[i].TranscriptID)
	}

	l.logger.Debug(ctx, "Discovered %d episodes played in the last %d days", len(items), days)
	return items, nil
}

func scanEpisode(rows *sql.Rows) (models.Item, error) {
	var (
		uuid, title, channel, author sql.NullString
		entitledID, entitledProv     sql.NullString
		freeID, freeProv, assetURL   sql.NullString
		duration, pubDate, played    sql.NullFloat64
		storeTrackID                 sql.NullInt64
	)
	if err := rows.Scan(
		&uuid, &title, &channel, &author,
		&duration, &pubDate, &played,
		&entitledID, &entitledProv, &freeID, &freeProv,
		&assetURL, &storeTrackID,
	); err != nil {
		return models.Item{}, fmt.Errorf("scan episode: %w", err)
	}

	item := models.Item{
		ID:                 uuid.String,
		Kind:               models.SourcePodcast,
		Title:              orDefault(title.String, untitledEpisode),
		Channel:            orDefault(channel.String, unknownPodcast),
		Author:             author.String,
		PublishedAt:        fromCoreData(pubDate),
		LastConsumedAt:     fromCoreData(played),
		Duration:           time.Duration(math.Round(duration.Float64)) * time.Second,
		TranscriptID:       orDefault(entitledID.String, freeID.String),
		TranscriptProvider: orDefault(entitledProv.String, freeProv.String),
		AssetURL:           assetURL.String,
		StoreTrackID:       storeTrackID.Int64,
	}
	return item, nil
}

// Channels lists every podcast with a title, alphabetically.
func (l *implLibrary) Channels(ctx context.Context) ([]Channel, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT p.ZTITLE, p.ZAUTHOR, p.ZSTORECOLLECTIONID, COUNT(e.Z_PK)
		FROM ZMTPODCAST p
		LEFT JOIN ZMTEPISODE e ON e.ZPODCAST = p.Z_PK
		WHERE p.ZTITLE IS NOT NULL
		GROUP BY p.Z_PK
		ORDER BY p.ZTITLE`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var (
			c       Channel
			author  sql.NullString
			storeID sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &author, &storeID, &c.EpisodeCount); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.Author = author.String
		c.StoreID = storeID.Int64
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// MatchChannel picks the channel whose name best matches query.
func (l *implLibrary) MatchChannel(ctx context.Context, query string) (*Match, error) {
	channels, err := l.Channels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = c.Name
	}

	matches := FuzzyMatch(query, names, MatchThreshold)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoChannelMatch, query)
	}

	best := matches[0]
	if best.Score < ConfidentMatch {
		l.logger.Warn(ctx, "Low confidence match for %q -> %q (score: %d/100)", query, best.Name, best.Score)
	} else {
		l.logger.Debug(ctx, "Matched channel %q -> %q (score: %d/100)", query, best.Name, best.Score)
	}
	return &best, nil
}

func (l *implLibrary) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	cutoff := toCoreData(l.now().AddDate(0, 0, -30))

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&s.Episodes, `SELECT COUNT(*) FROM ZMTEPISODE`, nil},
		{&s.Podcasts, `SELECT COUNT(*) FROM ZMTPODCAST`, nil},
		{&s.WithTranscripts, `SELECT COUNT(*) FROM ZMTEPISODE
			WHERE ZENTITLEDTRANSCRIPTIDENTIFIER IS NOT NULL OR ZFREETRANSCRIPTIDENTIFIER IS NOT NULL`, nil},
		{&s.RecentlyPlayed30d, `SELECT COUNT(*) FROM ZMTEPISODE WHERE ZLASTDATEPLAYED > ?`, []any{cutoff}},
	}
	for _, c := range counts {
		if err := l.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("library stats: %w", err)
		}
	}

	idx, err := l.index()
	if err != nil {
		return nil, err
	}
	s.CachedTranscripts = len(idx)
	s.TranscriptCachePath = l.cacheDir
	return &s, nil
}

func toCoreData(t time.Time) float64 {
	return t.Sub(coreDataEpoch).Seconds()
}

func fromCoreData(v sql.NullFloat64) time.Time {
	if !v.Valid || v.Float64 == 0 {
		return time.Time{}
	}
	return coreDataEpoch.Add(time.Duration(v.Float64 * float64(time.Second))).Local()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
