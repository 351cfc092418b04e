package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_For(t *testing.T) {
	r := NewRegistry()

	s, err := r.For("https://quartr.com/companies/acme/q3-call")
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = r.For("https://www.seekingalpha.com/article/123-acme-q3")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = r.For("https://blog.example.com/post")
	assert.ErrorIs(t, err, ErrNoScraper)
}

func TestEarningsCallScraper(t *testing.T) {
	page := `<html><head><title>ignored</title></head><body>
		<h1>Acme Corp Q3 2026 Earnings Call</h1>
		<audio controls><source src="https://cdn.quartr.com/audio/acme-q3.mp3" type="audio/mpeg"></audio>
		<div class="transcript">
			<p>Operator: Good afternoon, and welcome to the Acme third quarter call.</p>
			<p>Jane Smith: Thank you. Revenue for the quarter was $120 million, up 34 percent.</p>
			<p>John Doe: Our guidance for Q4 assumes continued momentum in the enterprise segment.</p>
		</div>
	</body></html>`

	s := &earningsCallScraper{}
	res, err := s.Scrape("https://quartr.com/companies/acme/q3-call", page)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp Q3 2026 Earnings Call", res.Title)
	assert.Equal(t, "https://cdn.quartr.com/audio/acme-q3.mp3", res.AudioURL)
	assert.Contains(t, res.TranscriptText, "Operator: Good afternoon")
	assert.Contains(t, res.TranscriptText, "Jane Smith: Thank you")
}

func TestEarningsCallScraper_EmptyPage(t *testing.T) {
	s := &earningsCallScraper{}
	_, err := s.Scrape("https://quartr.com/x", "<html><body><div></div></body></html>")
	assert.Error(t, err)
}
