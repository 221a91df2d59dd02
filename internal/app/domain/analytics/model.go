package analytics

import "time"

// LeaderboardEntry ranks a donor by delivered quantity and fulfilment.
type LeaderboardEntry struct {
	DonorID        string  `json:"donor_id"`
	DonorName      string  `json:"donor_name"`
	Pledged        float64 `json:"pledged"`
	Delivered      float64 `json:"delivered"`
	FulfilmentRate float64 `json:"fulfilment_rate"`
	Rank           int     `json:"rank"`
}

// TrendPoint is one bucket of activity counts.
type TrendPoint struct {
	Period      string `json:"period"`
	Assessments int    `json:"assessments"`
	Verified    int    `json:"verified"`
	Responses   int    `json:"responses"`
	Delivered   int    `json:"delivered"`
	Commitments int    `json:"commitments"`
}

// Snapshot is a cached analytics computation.
type Snapshot struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Trends      []TrendPoint       `json:"trends"`
	ComputedAt  time.Time          `json:"computed_at"`
}
