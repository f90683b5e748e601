package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"github.com/google/uuid"
)

// communityCounters is the raw activity gathered for one user and window.
type communityCounters struct {
	RequestsSubmitted int
	RequestsApproved  int
	RequestsResolved  int
	CommentsPosted    int
	UpvotesReceived   int
	UpvotesGiven      int
	RatingSum         float64
	RatedRequests     int
}

// communityScores is the derived-rate and composite-score bundle.
type communityScores struct {
	ApprovalRate      float64
	ResolutionRate    float64
	SatisfactionScore float64
	ContributionScore float64
	EngagementScore   float64
	QualityScore      float64
	OverallScore      float64
}

// computeScores derives rates and composite scores from raw counters.
// Empty inputs resolve to 0, never NaN.
func computeScores(c communityCounters) communityScores {
	var scores communityScores

	if c.RequestsSubmitted > 0 {
		scores.ApprovalRate = float64(c.RequestsApproved) / float64(c.RequestsSubmitted) * 100
	}
	if c.RequestsApproved > 0 {
		scores.ResolutionRate = float64(c.RequestsResolved) / float64(c.RequestsApproved) * 100
	}
	if c.RatedRequests > 0 {
		// mean(1-5 rating) * 20 maps onto 0-100
		scores.SatisfactionScore = c.RatingSum / float64(c.RatedRequests) * 20
	}

	scores.ContributionScore = float64(c.RequestsSubmitted)*10 +
		float64(c.RequestsApproved)*20 +
		float64(c.RequestsResolved)*30 +
		float64(c.CommentsPosted)*5
	scores.EngagementScore = float64(c.CommentsPosted)*5 +
		float64(c.UpvotesGiven)*2 +
		float64(c.UpvotesReceived)*3
	scores.QualityScore = scores.ApprovalRate*0.5 +
		scores.ResolutionRate*0.3 +
		scores.SatisfactionScore*0.2
	scores.OverallScore = scores.ContributionScore*0.4 +
		scores.EngagementScore*0.3 +
		scores.QualityScore*0.3

	return scores
}

// CommunityStatsService computes per-user contribution snapshots and keeps
// the rank population consistent.
type CommunityStatsService struct {
	userRepo      *repository.UserRepository
	requestRepo   *repository.RequestRepository
	communityRepo *repository.CommunityRepository
	logger        *logger.Logger
	clock         Clock
}

// NewCommunityStatsService creates a new CommunityStatsService.
// Parameters:
//   - userRepo: user lookups.
//   - requestRepo: activity reads (requests, comments, upvotes).
//   - communityRepo: snapshot persistence and rank updates.
//   - log: base logger.
//   - clock: process clock; nil uses time.Now.
// Returns:
//   - *CommunityStatsService: initialized service.
func NewCommunityStatsService(
	userRepo *repository.UserRepository,
	requestRepo *repository.RequestRepository,
	communityRepo *repository.CommunityRepository,
	log *logger.Logger,
	clock Clock,
) *CommunityStatsService {
	if clock == nil {
		clock = time.Now
	}
	return &CommunityStatsService{
		userRepo:      userRepo,
		requestRepo:   requestRepo,
		communityRepo: communityRepo,
		logger:        log,
		clock:         clock,
	}
}

func (s *CommunityStatsService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// CalculateUserStats computes one user's snapshot for an explicit window,
// upserts it, and recomputes the ranks of every snapshot sharing the
// (period, period_start) key. The full-population re-sort runs on every
// single-user update; its O(N log N) cost is an accepted property of the
// design, not an oversight.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user to calculate.
//   - period: aggregation period; must be in the community scope.
//   - start, end: explicit window bounds.
// Returns:
//   - *domain.CommunityStatsSnapshot: stored snapshot with its fresh rank.
//   - error: domain.ErrUserNotFound if the user is missing, or a query error.
func (s *CommunityStatsService) CalculateUserStats(ctx context.Context, userID uuid.UUID, period domain.PeriodType, start, end time.Time) (*domain.CommunityStatsSnapshot, error) {
	if !period.ValidForCommunity() {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrUnknownPeriodType)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	counters, err := s.gatherCounters(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("community stats for %s: %w", userID, err)
	}
	scores := computeScores(*counters)

	snap := &domain.CommunityStatsSnapshot{
		UserID:            userID,
		PeriodType:        period,
		PeriodStart:       start,
		PeriodEnd:         end,
		RequestsSubmitted: counters.RequestsSubmitted,
		RequestsApproved:  counters.RequestsApproved,
		RequestsResolved:  counters.RequestsResolved,
		CommentsPosted:    counters.CommentsPosted,
		UpvotesReceived:   counters.UpvotesReceived,
		UpvotesGiven:      counters.UpvotesGiven,
		ApprovalRate:      scores.ApprovalRate,
		ResolutionRate:    scores.ResolutionRate,
		SatisfactionScore: scores.SatisfactionScore,
		ContributionScore: scores.ContributionScore,
		EngagementScore:   scores.EngagementScore,
		QualityScore:      scores.QualityScore,
		OverallScore:      scores.OverallScore,
		CalculatedAt:      s.clock(),
	}
	if err := s.communityRepo.Upsert(ctx, snap); err != nil {
		return nil, err
	}

	population, err := s.recomputeRanks(ctx, period, start)
	if err != nil {
		return nil, err
	}
	for i := range population {
		if population[i].UserID == userID {
			return &population[i], nil
		}
	}
	return snap, nil
}

// gatherCounters reads the independent activity counters concurrently and
// joins before scoring.
func (s *CommunityStatsService) gatherCounters(ctx context.Context, userID uuid.UUID, start, end time.Time) (*communityCounters, error) {
	var (
		counters communityCounters
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(4)

	go func() {
		defer wg.Done()
		submitted, err := s.requestRepo.SubmittedInWindow(ctx, userID, start, end)
		if err != nil {
			fail(err)
			return
		}
		approved := statusSet(domain.ApprovedStatuses())
		resolved := statusSet(domain.ResolvedStatuses())
		mu.Lock()
		counters.RequestsSubmitted = len(submitted)
		for i := range submitted {
			r := &submitted[i]
			if approved[r.Status] {
				counters.RequestsApproved++
			}
			if resolved[r.Status] {
				counters.RequestsResolved++
			}
			if r.SatisfactionRating != nil {
				counters.RatingSum += float64(*r.SatisfactionRating)
				counters.RatedRequests++
			}
		}
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		comments, err := s.requestRepo.CountCommentsBy(ctx, userID, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		counters.CommentsPosted = int(comments)
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		received, err := s.requestRepo.CountUpvotesReceived(ctx, userID, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		counters.UpvotesReceived = int(received)
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		given, err := s.requestRepo.CountUpvotesGiven(ctx, userID, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		counters.UpvotesGiven = int(given)
		mu.Unlock()
	}()

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return &counters, nil
}

// recomputeRanks reloads every snapshot sharing (period, periodStart), sorts
// by overall score descending, stashes each current rank into previous_rank,
// assigns the new 1-based positions, and writes the whole population as one
// atomic batch.
func (s *CommunityStatsService) recomputeRanks(ctx context.Context, period domain.PeriodType, periodStart time.Time) ([]domain.CommunityStatsSnapshot, error) {
	population, err := s.communityRepo.ListByPeriodStart(ctx, period, periodStart)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(population, func(i, j int) bool {
		return population[i].OverallScore > population[j].OverallScore
	})
	for i := range population {
		population[i].PreviousRank = population[i].Rank
		population[i].Rank = i + 1
	}

	if err := s.communityRepo.UpdateRanks(ctx, population); err != nil {
		return nil, fmt.Errorf("rank recomputation for %s: %w", period, err)
	}
	return population, nil
}

// CalculateForAllUsers resolves the period window once and recalculates
// every active user sequentially, isolating per-user failures.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - period: aggregation period for every user.
// Returns:
//   - error: non-nil only when the user listing itself fails.
func (s *CommunityStatsService) CalculateForAllUsers(ctx context.Context, period domain.PeriodType) error {
	started := s.clock()
	log := s.log(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "community-stats",
		logger.FieldPeriod:    string(period),
	})
	log.Infof("Starting community stats batch")

	start, end := period.Window(started)
	users, err := s.userRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var failed int
	for i := range users {
		if _, err := s.CalculateUserStats(ctx, users[i].ID, period, start, end); err != nil {
			failed++
			log.WithError(err).WithField(logger.FieldUserID, users[i].ID.String()).
				Errorf("User stats calculation failed")
		}
	}

	log.WithFields(logger.Fields{
		logger.FieldCount:      len(users),
		logger.FieldFailed:     failed,
		logger.FieldDurationMs: s.clock().Sub(started).Milliseconds(),
	}).Infof("Community stats batch complete")
	return nil
}

// statusSet builds a lookup set from a status list.
func statusSet(statuses []domain.RequestStatus) map[domain.RequestStatus]bool {
	set := make(map[domain.RequestStatus]bool, len(statuses))
	for _, status := range statuses {
		set[status] = true
	}
	return set
}
