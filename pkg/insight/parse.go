package insight

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/transcript"
)

// Insights is the parsed summary output.
type Insights struct {
	Summary     string              `json:"summary"`
	KeyInsights []models.KeyInsight `json:"key_insights"`
	Quotes      []models.Quote      `json:"quotes"`
	Topics      []string            `json:"topics"`
}

// ParseInsights decodes a model response into Insights, tolerating the
// usual model sloppiness: surrounding code fences, missing keys, mistyped
// values. Timestamps are dropped when no transcript backed the prompt and
// nulled when they fall outside the content duration (maxSeconds 0 means
// unknown duration, range unchecked).
func ParseInsights(raw string, hasTranscript bool, maxSeconds float64) (*Insights, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	out := &Insights{
		Summary: asString(decoded["summary"]),
		Topics:  asStringSlice(decoded["topics"]),
	}

	var rawInsights []map[string]json.RawMessage
	json.Unmarshal(decoded["key_insights"], &rawInsights)
	for _, item := range rawInsights {
		text := asString(item["insight"])
		if text == "" {
			continue
		}
		ki := models.KeyInsight{Insight: text}
		applyTimestamp(&ki.TimestampSeconds, &ki.TimeFormatted, item["timestamp_seconds"], hasTranscript, maxSeconds)
		out.KeyInsights = append(out.KeyInsights, ki)
	}

	var rawQuotes []map[string]json.RawMessage
	json.Unmarshal(decoded["quotes"], &rawQuotes)
	for _, item := range rawQuotes {
		text := asString(item["quote"])
		if text == "" {
			continue
		}
		q := models.Quote{
			Quote:   text,
			Speaker: optString(asString(item["speaker"])),
			Context: optString(asString(item["context"])),
		}
		applyTimestamp(&q.TimestampSeconds, &q.TimeFormatted, item["timestamp_seconds"], hasTranscript, maxSeconds)
		out.Quotes = append(out.Quotes, q)
	}

	return out, nil
}

// ParseThemed decodes a themed-analysis response, guaranteeing every
// requested theme key is present (empty when the model omitted it).
func ParseThemed(raw string, themes []string) (map[string]any, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	out := make(map[string]any, len(themes))
	for _, theme := range themes {
		out[theme] = asStringSlice(decoded[theme])
	}
	return out, nil
}

// EarningsThemes are the sections of an earnings-call analysis.
var EarningsThemes = []string{
	"key_metrics", "business_highlights", "guidance",
	"risks_concerns", "positives", "notable_quotes",
}

// ParseEarnings decodes an earnings analysis; notable_quotes keeps its
// object shape, the other sections are string lists.
func ParseEarnings(raw string) (map[string]any, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	out := make(map[string]any, len(EarningsThemes))
	for _, theme := range EarningsThemes {
		if theme == "notable_quotes" {
			continue
		}
		out[theme] = asStringSlice(decoded[theme])
	}

	var quotes []map[string]json.RawMessage
	json.Unmarshal(decoded["notable_quotes"], &quotes)
	parsed := make([]map[string]string, 0, len(quotes))
	for _, q := range quotes {
		if text := asString(q["quote"]); text != "" {
			parsed = append(parsed, map[string]string{
				"quote":   text,
				"speaker": asString(q["speaker"]),
			})
		}
	}
	out["notable_quotes"] = parsed

	return out, nil
}

// applyTimestamp validates and formats a timestamp field.
func applyTimestamp(seconds **float64, formatted **string, raw json.RawMessage, hasTranscript bool, maxSeconds float64) {
	if !hasTranscript {
		return
	}
	v, ok := asFloat(raw)
	if !ok || v < 0 {
		return
	}
	if maxSeconds > 0 && v > maxSeconds {
		return
	}
	f := transcript.FormatTimestamp(v)
	*seconds = &v
	*formatted = &f
}

// stripFences removes a surrounding markdown code fence and any prose
// before the first brace.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}
	if idx := strings.LastIndex(s, "}"); idx >= 0 {
		s = s[:idx+1]
	}
	return s
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func asStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// A bare string becomes a one-item list.
		if s := asString(raw); s != "" {
			return []string{s}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
