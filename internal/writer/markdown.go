package writer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nguyentantai21042004/afterthought/internal/models"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

type frontmatter struct {
	Type                string   `yaml:"type"`
	CSSClass            string   `yaml:"cssclass"`
	Title               string   `yaml:"title"`
	Aliases             []string `yaml:"aliases"`
	Podcast             string   `yaml:"podcast"`
	Author              string   `yaml:"author,omitempty"`
	Date                string   `yaml:"date,omitempty"`
	Listened            string   `yaml:"listened,omitempty"`
	Duration            string   `yaml:"duration,omitempty"`
	Tags                []string `yaml:"tags"`
	TranscriptAvailable bool     `yaml:"transcript_available"`
	TranscriptProvider  string   `yaml:"transcript_provider,omitempty"`
	SpeakerLabels       bool     `yaml:"speaker_labels"`
	WordCount           int      `yaml:"word_count,omitempty"`
	InputTokens         int      `yaml:"input_tokens"`
	OutputTokens        int      `yaml:"output_tokens"`
	AIModel             string   `yaml:"ai_model,omitempty"`
	EpisodeUUID         string   `yaml:"episode_uuid"`
}

func newFrontmatter(r models.Result) frontmatter {
	item := r.Item

	fm := frontmatter{
		Type:                "podcast-summary",
		CSSClass:            "podcast",
		Title:               item.Title,
		Aliases:             []string{item.Title},
		Podcast:             fmt.Sprintf("[[%s]]", item.Channel),
		Author:              item.Author,
		Tags:                []string{"podcast"},
		TranscriptAvailable: item.HasTranscript(),
		TranscriptProvider:  item.TranscriptProvider,
		SpeakerLabels:       r.HasSpeakerLabels,
		WordCount:           r.WordCount,
		InputTokens:         r.Summary.InputTokens,
		OutputTokens:        r.Summary.OutputTokens,
		AIModel:             r.Summary.Model,
		EpisodeUUID:         item.ID,
	}
	if item.Kind == models.SourceVideo {
		fm.Type = "video-summary"
		fm.CSSClass = "video"
		fm.Tags[0] = "video"
	}
	if tag := sanitizeTag(item.Channel); tag != "" {
		fm.Tags = append(fm.Tags, tag)
	}
	if !item.PublishedAt.IsZero() {
		fm.Date = item.PublishedAt.Format(dateLayout)
	}
	if !item.LastConsumedAt.IsZero() {
		fm.Listened = item.LastConsumedAt.Format(dateLayout)
	}

	duration := item.Duration
	if duration <= 0 {
		duration = r.TranscriptDuration
	}
	if duration > 0 {
		fm.Duration = models.FormatDuration(duration)
	}
	return fm
}

// renderMarkdown produces "---\n<yaml>---\n\n<body>\n".
func renderMarkdown(r models.Result) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newFrontmatter(r)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	buf.WriteString("---\n\n")
	body := strings.TrimSpace(r.Summary.Text)
	if body == "" {
		body = fallbackBody(r.Item)
	}
	buf.WriteString(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func fallbackBody(item models.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	b.WriteString("## Episode Information\n\n")
	fmt.Fprintf(&b, "- **Podcast:** %s\n", item.Channel)
	if item.Author != "" {
		fmt.Fprintf(&b, "- **Author:** %s\n", item.Author)
	}
	if !item.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "- **Published:** %s\n", item.PublishedAt.Format(dateLayout))
	}
	if item.Duration > 0 {
		fmt.Fprintf(&b, "- **Duration:** %s\n", models.FormatDuration(item.Duration))
	}
	if !item.LastConsumedAt.IsZero() {
		fmt.Fprintf(&b, "- **Last Played:** %s\n", item.LastConsumedAt.Format("2006-01-02 15:04:05"))
	}
	return strings.TrimSpace(b.String())
}
