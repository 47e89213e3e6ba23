package httpapi

import (
	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

func snapshotDTO(snap domain.PlayerSnapshot) statsdto.PlayerInfoDTO {
	ratings := make(map[string]statsdto.RatingDTO, len(snap.Ratings))
	for control, line := range snap.Ratings {
		ratings[control.String()] = statsdto.RatingDTO{
			Rating:      line.Rating,
			Games:       line.Games,
			Provisional: line.Provisional,
		}
	}
	return statsdto.PlayerInfoDTO{
		Username:   snap.Username,
		Title:      snap.Title,
		Flag:       snap.Flag,
		Ratings:    ratings,
		TotalGames: snap.TotalGames,
		CreatedAt:  snap.CreatedAt,
		LastSeen:   snap.LastSeen,
		FetchedAt:  snap.FetchedAt,
	}
}

func performanceDTO(w domain.PerformanceWindow) statsdto.PerformanceDTO {
	dto := statsdto.PerformanceDTO{
		From:   w.From,
		To:     w.To,
		Wins:   w.Wins,
		Draws:  w.Draws,
		Losses: w.Losses,
		Total:  w.Total,
	}
	if rate, ok := w.WinRate(); ok {
		dto.WinRate = &rate
	}
	return dto
}

func comparisonSideDTO(side domain.ComparisonSide) statsdto.ComparisonSideDTO {
	return statsdto.ComparisonSideDTO{
		Player:      snapshotDTO(side.Snapshot),
		Performance: performanceDTO(side.Window),
	}
}
