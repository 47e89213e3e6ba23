package chart

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

func TestRender_EmptySeriesIsNoData(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(nil, time.Now().Add(-time.Hour), time.Now(), "nobody")
	if !statsdto.IsKind(err, statsdto.KindNoData) {
		t.Fatalf("err = %v, want no_data", err)
	}
}

func TestRender_InvertedRangeRejected(t *testing.T) {
	r := NewRenderer()
	now := time.Now().UTC()
	points := []domain.RatingPoint{{At: now, Rating: 1500}}
	_, err := r.Render(points, now, now.Add(-time.Hour), "x")
	if !statsdto.IsKind(err, statsdto.KindInvalidRange) {
		t.Fatalf("err = %v, want invalid_range", err)
	}
}

func TestRender_ProducesDecodablePNG(t *testing.T) {
	r := NewRenderer()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)
	points := []domain.RatingPoint{
		{At: from.AddDate(0, 0, 1), Rating: 1850},
		{At: from.AddDate(0, 0, 10), Rating: 1880},
		{At: from.AddDate(0, 0, 20), Rating: 1860},
		{At: from.AddDate(0, 0, 29), Rating: 1910},
	}
	raw, err := r.Render(points, from, to, "alice · blitz")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != defaultWidth || bounds.Dy() != defaultHeight {
		t.Fatalf("bounds = %v", bounds)
	}
}

func TestRender_SinglePointFlatSeries(t *testing.T) {
	r := NewRenderer()
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	raw, err := r.Render([]domain.RatingPoint{{At: at, Rating: 1500}}, at, at, "flat")
	if err != nil {
		t.Fatalf("render single point: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestCollapseDuplicates_LastValueWins(t *testing.T) {
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	points := []domain.RatingPoint{
		{At: at, Rating: 1500},
		{At: at, Rating: 1520},
		{At: at.AddDate(0, 0, 1), Rating: 1510},
	}
	got := collapseDuplicates(points)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Rating != 1520 {
		t.Fatalf("collapsed rating = %d, want the later sample", got[0].Rating)
	}
}

func TestRatingBounds_PadsFlatSeries(t *testing.T) {
	points := []domain.RatingPoint{{Rating: 1500}, {Rating: 1505}}
	lo, hi := ratingBounds(points)
	if hi-lo < 20 {
		t.Fatalf("bounds %d..%d too tight for a flat series", lo, hi)
	}
	if lo > 1500 || hi < 1505 {
		t.Fatalf("bounds %d..%d exclude the data", lo, hi)
	}
}
