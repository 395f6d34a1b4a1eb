package player

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// ErrNoEpisodeID means no store id could be derived for the episode.
var ErrNoEpisodeID = errors.New("no episode id")

var (
	reAssetID    = regexp.MustCompile(`/id(\d+)`)
	reAssetParam = regexp.MustCompile(`[?&]i=(\d+)`)
	reNonDigit   = regexp.MustCompile(`\D`)
)

// playScript opens the episode, presses its play button, then pauses.
const playScript = `tell application "Podcasts" to activate
open location "%s"
delay 4

tell application "System Events"
	tell process "Podcasts"
		tell window 1
			set allElements to entire contents
			repeat with elem in allElements
				try
					set elemDesc to description of elem
					if class of elem is button and (elemDesc contains "Replay" or (elemDesc starts with "Play" and elemDesc contains "minute")) then
						click elem
						delay 2
						try
							key code 49
						end try
						exit repeat
					end if
				end try
			end repeat
		end tell
	end tell
end tell`

func (p *implPlayer) Fetch(ctx context.Context, item models.Item) error {
	id := episodeID(item)
	if id == "" {
		return fmt.Errorf("%w for %q", ErrNoEpisodeID, item.Title)
	}

	link := p.episodeURL(item, id)
	p.logger.Info(ctx, "Triggering playback to fetch transcript: %s", item.Title)
	p.logger.Debug(ctx, "Opening %s", link)

	if _, err := p.exec.Execute(ctx, "osascript", "-e", fmt.Sprintf(playScript, link)); err != nil {
		return fmt.Errorf("trigger playback: %w", err)
	}

	p.logger.Info(ctx, "Waiting %s for transcript download...", p.wait)
	return p.sleep(ctx, p.wait)
}

func (p *implPlayer) FetchMissing(ctx context.Context, items []models.Item, loc Locator) []models.Item {
	out := make([]models.Item, len(items))
	copy(out, items)

	for i := range out {
		if out[i].HasTranscript() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		if err := p.Fetch(ctx, out[i]); err != nil {
			p.logger.Warn(ctx, "Could not fetch transcript for %q: %v", out[i].Title, err)
			continue
		}

		path, err := loc.Locate(out[i])
		if err != nil {
			p.logger.Warn(ctx, "Could not locate transcript for %q: %v", out[i].Title, err)
			continue
		}
		if path == "" {
			p.logger.Warn(ctx, "Transcript still missing after fetch: %q", out[i].Title)
			continue
		}
		out[i].TranscriptLocator = path
	}
	return out
}

// episodeID prefers the store track id, then ids embedded in the asset URL,
// then the digits of the episode uuid, then the uuid itself.
func episodeID(item models.Item) string {
	if item.StoreTrackID > 0 {
		return strconv.FormatInt(item.StoreTrackID, 10)
	}
	if item.AssetURL != "" {
		if m := reAssetID.FindStringSubmatch(item.AssetURL); m != nil {
			return m[1]
		}
		if m := reAssetParam.FindStringSubmatch(item.AssetURL); m != nil {
			return m[1]
		}
		if digits := reNonDigit.ReplaceAllString(item.ID, ""); digits != "" {
			return digits
		}
	}
	return item.ID
}

func (p *implPlayer) episodeURL(item models.Item, id string) string {
	name := url.PathEscape(strings.ToLower(strings.ReplaceAll(item.Channel, " ", "-")))
	return fmt.Sprintf("podcasts://podcasts.apple.com/%s/podcast/%s?i=%s", p.region, name, id)
}
