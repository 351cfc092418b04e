package insight

import (
	"fmt"
	"strings"
)

// ContextKind selects the prompt shape for the content type.
type ContextKind string

const (
	ContextVideo    ContextKind = "video"
	ContextAudio    ContextKind = "audio"
	ContextText     ContextKind = "text"
	ContextEarnings ContextKind = "earnings"
)

// maxTranscriptChars caps the transcript text included in a prompt.
const maxTranscriptChars = 150000

// PromptInput is everything the prompt builders consume.
type PromptInput struct {
	Kind       ContextKind
	Title      string
	Text       string
	Transcript string
	SourceURL  string
}

// HasTranscript reports whether timestamped content is available.
func (p PromptInput) HasTranscript() bool {
	return strings.TrimSpace(p.Transcript) != ""
}

func truncateTranscript(s string) string {
	if len(s) <= maxTranscriptChars {
		return s
	}
	return s[:maxTranscriptChars] + "..."
}

const insightSystemPrompt = `You are an analyst producing structured notes on content.
Respond with a single JSON object and nothing else. Keys:
  "summary": 2-4 paragraph prose summary,
  "key_insights": array of {"insight": string, "timestamp_seconds": number or null},
  "quotes": array of {"quote": string, "speaker": string, "timestamp_seconds": number or null, "context": string},
  "topics": array of short topic strings.`

const timestampRules = `The transcript lines are prefixed with [MM:SS] or [H:MM:SS] timestamps.
Every key insight and quote MUST carry a timestamp_seconds value taken from the
nearest preceding transcript timestamp. Spread insights across the full runtime;
do not place two timestamps within 30 seconds of each other.`

const noTimestampRules = `There is no transcript for this content. Set every
timestamp_seconds field to null; never invent timestamps.`

// BuildInsightPrompt renders the system and user prompts for summary
// generation.
func BuildInsightPrompt(in PromptInput) (system, user string) {
	var sb strings.Builder

	switch in.Kind {
	case ContextVideo:
		fmt.Fprintf(&sb, "Analyze this video (%s).\n\n", in.SourceURL)
	case ContextAudio:
		fmt.Fprintf(&sb, "Analyze this audio episode (%s).\n\n", in.SourceURL)
	default:
		fmt.Fprintf(&sb, "Analyze this article (%s).\n\n", in.SourceURL)
	}

	if in.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n\n", in.Title)
	}
	if in.Text != "" {
		fmt.Fprintf(&sb, "Content:\n%s\n\n", truncateTranscript(in.Text))
	}

	rules := noTimestampRules
	if in.HasTranscript() {
		fmt.Fprintf(&sb, "Transcript:\n%s\n\n", truncateTranscript(in.Transcript))
		rules = timestampRules
	}
	sb.WriteString(rules)

	return insightSystemPrompt, sb.String()
}

const earningsSystemPrompt = `You are an equity analyst producing structured notes on an
earnings call transcript. Respond with a single JSON object and nothing else. Keys:
  "key_metrics": array of strings (revenue, margins, growth figures as stated),
  "business_highlights": array of strings,
  "guidance": array of strings (forward-looking statements),
  "risks_concerns": array of strings,
  "positives": array of strings,
  "notable_quotes": array of {"quote": string, "speaker": string}.`

// BuildEarningsPrompt renders the prompts for earnings-call analysis.
func BuildEarningsPrompt(in PromptInput) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this earnings call (%s).\n\n", in.SourceURL)
	if in.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n\n", in.Title)
	}
	body := in.Transcript
	if body == "" {
		body = in.Text
	}
	fmt.Fprintf(&sb, "Transcript:\n%s\n", truncateTranscript(body))
	return earningsSystemPrompt, sb.String()
}

// BuildThemedPrompt renders the prompts for organization-specific themed
// analysis of private content.
func BuildThemedPrompt(in PromptInput, themes []string) (system, user string) {
	var keys strings.Builder
	for i, theme := range themes {
		if i > 0 {
			keys.WriteString(", ")
		}
		fmt.Fprintf(&keys, "%q", theme)
	}
	system = fmt.Sprintf(`You are an analyst extracting themed notes from content.
Respond with a single JSON object and nothing else, with exactly these keys,
each mapping to an array of strings: %s.`, keys.String())

	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract the themed notes from this content (%s).\n\n", in.SourceURL)
	if in.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n\n", in.Title)
	}
	body := in.Transcript
	if body == "" {
		body = in.Text
	}
	fmt.Fprintf(&sb, "Content:\n%s\n", truncateTranscript(body))
	return system, sb.String()
}
