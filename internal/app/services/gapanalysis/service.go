// Package gapanalysis computes resource shortfalls and matches donors to
// entities in need.
package gapanalysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/gap"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/metrics"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service computes gap reports from verified assessments, commitments and
// delivered responses.
type Service struct {
	gaps        storage.GapStore
	assessments storage.AssessmentStore
	responses   storage.ResponseStore
	commitments storage.CommitmentStore
	incidents   storage.IncidentStore
	log         *logger.Logger
}

// New constructs a gap analysis service.
func New(gaps storage.GapStore, assessments storage.AssessmentStore, responses storage.ResponseStore, commitments storage.CommitmentStore, incidents storage.IncidentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gapanalysis")
	}
	return &Service{gaps: gaps, assessments: assessments, responses: responses, commitments: commitments, incidents: incidents, log: log}
}

// severityFor grades how much of the requirement is covered. supplied is
// committed plus delivered.
func severityFor(required, supplied float64) gap.Severity {
	if required <= 0 {
		return gap.SeverityMet
	}
	ratio := supplied / required
	switch {
	case ratio >= 1:
		return gap.SeverityMet
	case ratio >= 0.75:
		return gap.SeverityLow
	case ratio >= 0.4:
		return gap.SeverityModerate
	default:
		return gap.SeverityCritical
	}
}

type itemKey struct {
	item string
	unit string
}

// ComputeEntity recomputes and caches the gap report for one entity.
// Requirements come from the latest verified assessment per sector; supply
// comes from open commitments and delivered responses.
func (s *Service) ComputeEntity(ctx context.Context, entityID string) (gap.Report, error) {
	start := time.Now()
	report, err := s.computeEntity(ctx, entityID)
	metrics.RecordGapComputation(time.Since(start), err == nil)
	return report, err
}

func (s *Service) computeEntity(ctx context.Context, entityID string) (gap.Report, error) {
	verified, err := s.assessments.ListAssessments(ctx, storage.AssessmentFilter{
		EntityID: entityID,
		Status:   assessment.VerificationVerified,
	})
	if err != nil {
		return gap.Report{}, err
	}

	latest := make(map[assessment.Sector]assessment.RapidAssessment)
	for _, a := range verified {
		if cur, ok := latest[a.Sector]; !ok || a.CapturedAt.After(cur.CapturedAt) {
			latest[a.Sector] = a
		}
	}

	required := make(map[itemKey]float64)
	sectors := make(map[itemKey]string)
	for sector, a := range latest {
		for _, need := range a.Needs {
			key := itemKey{item: need.Item, unit: need.Unit}
			required[key] += need.Quantity
			sectors[key] = string(sector)
		}
	}

	committed := make(map[itemKey]float64)
	pledges, err := s.commitments.ListCommitments(ctx, storage.CommitmentFilter{EntityID: entityID})
	if err != nil {
		return gap.Report{}, err
	}
	for _, c := range pledges {
		if c.Status != commitment.StatusPledged && c.Status != commitment.StatusInTransit {
			continue
		}
		for _, item := range c.Items {
			committed[itemKey{item: item.Item, unit: item.Unit}] += item.Quantity
		}
	}

	delivered := make(map[itemKey]float64)
	deliveries, err := s.responses.ListResponses(ctx, storage.ResponseFilter{
		EntityID: entityID,
		Status:   response.StatusDelivered,
	})
	if err != nil {
		return gap.Report{}, err
	}
	for _, r := range deliveries {
		for _, item := range r.Items {
			delivered[itemKey{item: item.Item, unit: item.Unit}] += item.Quantity
		}
	}

	gaps := make([]gap.EntityGap, 0, len(required))
	for key, req := range required {
		com := committed[key]
		del := delivered[key]
		shortfall := req - com - del
		if shortfall < 0 {
			shortfall = 0
		}
		gaps = append(gaps, gap.EntityGap{
			EntityID:  entityID,
			Sector:    sectors[key],
			Item:      key.item,
			Unit:      key.unit,
			Required:  req,
			Committed: com,
			Delivered: del,
			Gap:       shortfall,
			Severity:  severityFor(req, com+del),
		})
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Gap != gaps[j].Gap {
			return gaps[i].Gap > gaps[j].Gap
		}
		return gaps[i].Item < gaps[j].Item
	})

	report := gap.Report{EntityID: entityID, Gaps: gaps, ComputedAt: time.Now().UTC()}
	if err := s.gaps.SaveGapReport(ctx, report); err != nil {
		return gap.Report{}, err
	}
	return report, nil
}

// EntityReport returns the cached report for an entity, computing it on a
// cache miss.
func (s *Service) EntityReport(ctx context.Context, entityID string) (gap.Report, error) {
	report, err := s.gaps.GetGapReport(ctx, entityID)
	if err != nil {
		return s.ComputeEntity(ctx, entityID)
	}
	return report, nil
}

// ComputeIncident recomputes gap reports for every entity linked to the
// incident and returns them keyed by entity.
func (s *Service) ComputeIncident(ctx context.Context, incidentID string) (map[string]gap.Report, error) {
	links, err := s.incidents.ListIncidentEntities(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	reports := make(map[string]gap.Report, len(links))
	for _, link := range links {
		report, err := s.ComputeEntity(ctx, link.EntityID)
		if err != nil {
			return nil, fmt.Errorf("compute entity %s: %w", link.EntityID, err)
		}
		reports[link.EntityID] = report
	}
	return reports, nil
}

// MatchDonors scores donors whose open pledges anywhere in the system cover
// the entity's outstanding gaps. A donor earns, per matched item, the
// covered fraction of that item's gap; the score is the average over the
// entity's open gaps.
func (s *Service) MatchDonors(ctx context.Context, entityID string) ([]gap.DonorMatch, error) {
	report, err := s.EntityReport(ctx, entityID)
	if err != nil {
		return nil, err
	}

	open := make(map[itemKey]float64)
	for _, g := range report.Gaps {
		if g.Gap > 0 {
			open[itemKey{item: g.Item, unit: g.Unit}] = g.Gap
		}
	}
	if len(open) == 0 {
		return []gap.DonorMatch{}, nil
	}

	pledges, err := s.commitments.ListCommitments(ctx, storage.CommitmentFilter{})
	if err != nil {
		return nil, err
	}

	type donorSupply struct {
		items map[itemKey]float64
	}
	donors := make(map[string]*donorSupply)
	for _, c := range pledges {
		if c.Status != commitment.StatusPledged {
			continue
		}
		ds, ok := donors[c.DonorID]
		if !ok {
			ds = &donorSupply{items: make(map[itemKey]float64)}
			donors[c.DonorID] = ds
		}
		for _, item := range c.Items {
			ds.items[itemKey{item: item.Item, unit: item.Unit}] += item.Quantity
		}
	}

	matches := make([]gap.DonorMatch, 0, len(donors))
	for donorID, ds := range donors {
		var total float64
		var matched []string
		for key, needed := range open {
			available := ds.items[key]
			if available <= 0 {
				continue
			}
			coverage := available / needed
			if coverage > 1 {
				coverage = 1
			}
			total += coverage
			matched = append(matched, key.item)
		}
		if len(matched) == 0 {
			continue
		}
		sort.Strings(matched)
		matches = append(matches, gap.DonorMatch{
			DonorID:      donorID,
			Score:        total / float64(len(open)),
			MatchedItems: matched,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DonorID < matches[j].DonorID
	})
	return matches, nil
}
