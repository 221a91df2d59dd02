// Package analytics computes donor leaderboards and activity trends.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/analytics"
	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service computes analytics over assessments, responses and commitments.
// Results are cached in-process and refreshed by the background runner.
type Service struct {
	assessments storage.AssessmentStore
	responses   storage.ResponseStore
	commitments storage.CommitmentStore
	users       storage.UserStore

	mu       sync.RWMutex
	snapshot analytics.Snapshot

	log *logger.Logger
}

// New constructs an analytics service.
func New(assessments storage.AssessmentStore, responses storage.ResponseStore, commitments storage.CommitmentStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	return &Service{assessments: assessments, responses: responses, commitments: commitments, users: users, log: log}
}

// Snapshot returns the cached computation, refreshing it when empty or
// older than maxAge. maxAge <= 0 always accepts the cache.
func (s *Service) Snapshot(ctx context.Context, maxAge time.Duration) (analytics.Snapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if !snap.ComputedAt.IsZero() && (maxAge <= 0 || time.Since(snap.ComputedAt) <= maxAge) {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot and replaces the cache.
func (s *Service) Refresh(ctx context.Context) (analytics.Snapshot, error) {
	leaderboard, err := s.computeLeaderboard(ctx)
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("compute leaderboard: %w", err)
	}
	trends, err := s.computeTrends(ctx, 30)
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("compute trends: %w", err)
	}
	snap := analytics.Snapshot{
		Leaderboard: leaderboard,
		Trends:      trends,
		ComputedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return snap, nil
}

// Leaderboard returns donors ranked by delivered quantity, fulfilment rate
// breaking ties.
func (s *Service) Leaderboard(ctx context.Context) ([]analytics.LeaderboardEntry, error) {
	snap, err := s.Snapshot(ctx, 0)
	if err != nil {
		return nil, err
	}
	return snap.Leaderboard, nil
}

// Trends returns daily activity buckets from the cached snapshot.
func (s *Service) Trends(ctx context.Context) ([]analytics.TrendPoint, error) {
	snap, err := s.Snapshot(ctx, 0)
	if err != nil {
		return nil, err
	}
	return snap.Trends, nil
}

func (s *Service) computeLeaderboard(ctx context.Context) ([]analytics.LeaderboardEntry, error) {
	pledges, err := s.commitments.ListCommitments(ctx, storage.CommitmentFilter{})
	if err != nil {
		return nil, err
	}

	type totals struct {
		pledged   float64
		delivered float64
	}
	byDonor := make(map[string]*totals)
	for _, c := range pledges {
		t, ok := byDonor[c.DonorID]
		if !ok {
			t = &totals{}
			byDonor[c.DonorID] = t
		}
		var qty float64
		for _, item := range c.Items {
			qty += item.Quantity
		}
		if c.Status != commitment.StatusCancelled {
			t.pledged += qty
		}
		if c.Status == commitment.StatusDelivered {
			t.delivered += qty
		}
	}

	entries := make([]analytics.LeaderboardEntry, 0, len(byDonor))
	for donorID, t := range byDonor {
		entry := analytics.LeaderboardEntry{
			DonorID:   donorID,
			Pledged:   t.pledged,
			Delivered: t.delivered,
		}
		if t.pledged > 0 {
			entry.FulfilmentRate = t.delivered / t.pledged
		}
		if u, err := s.users.GetUser(ctx, donorID); err == nil {
			entry.DonorName = u.Name
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Delivered != entries[j].Delivered {
			return entries[i].Delivered > entries[j].Delivered
		}
		if entries[i].FulfilmentRate != entries[j].FulfilmentRate {
			return entries[i].FulfilmentRate > entries[j].FulfilmentRate
		}
		return entries[i].DonorID < entries[j].DonorID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *Service) computeTrends(ctx context.Context, days int) ([]analytics.TrendPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	buckets := make(map[string]*analytics.TrendPoint)
	bucket := func(t time.Time) *analytics.TrendPoint {
		period := t.UTC().Format("2006-01-02")
		p, ok := buckets[period]
		if !ok {
			p = &analytics.TrendPoint{Period: period}
			buckets[period] = p
		}
		return p
	}

	asses, err := s.assessments.ListAssessments(ctx, storage.AssessmentFilter{Since: since})
	if err != nil {
		return nil, err
	}
	for _, a := range asses {
		p := bucket(a.CreatedAt)
		p.Assessments++
		if a.VerificationStatus == assessment.VerificationVerified {
			p.Verified++
		}
	}

	resps, err := s.responses.ListResponses(ctx, storage.ResponseFilter{Since: since})
	if err != nil {
		return nil, err
	}
	for _, r := range resps {
		p := bucket(r.CreatedAt)
		p.Responses++
		if r.Status == response.StatusDelivered {
			p.Delivered++
		}
	}

	pledges, err := s.commitments.ListCommitments(ctx, storage.CommitmentFilter{Since: since})
	if err != nil {
		return nil, err
	}
	for _, c := range pledges {
		bucket(c.CreatedAt).Commitments++
	}

	points := make([]analytics.TrendPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}
