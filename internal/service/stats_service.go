package service

import (
	"context"
	"math"
	"time"

	"github.com/snipvault/snipvault/internal/model"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/pkg/timeutil"
)

const dailyWindowDays = 30

var breakdownDimensions = []string{"source", "device_type", "browser", "os", "country", "city"}

type PeriodStat struct {
	Count      int64   `json:"count"`
	Previous   int64   `json:"previous"`
	GrowthRate float64 `json:"growth_rate"`
}

type ShareStats struct {
	Totals     model.AccessTotals                `json:"totals"`
	Today      PeriodStat                        `json:"today"`
	ThisWeek   PeriodStat                        `json:"this_week"`
	ThisMonth  PeriodStat                        `json:"this_month"`
	Daily      []model.AccessBucket              `json:"daily"`
	Hourly     []model.AccessBucket              `json:"hourly"`
	Breakdowns map[string][]model.AccessCategory `json:"breakdowns"`
}

// StatsService is the read side over the access log. It never touches token
// counters, so it does not contend with the access path.
type StatsService struct {
	tokens TokenStore
	logs   AccessLogStore
	loc    *time.Location
	now    func() time.Time
}

func NewStatsService(tokens TokenStore, logs AccessLogStore, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{tokens: tokens, logs: logs, loc: loc, now: time.Now}
}

func (s *StatsService) TokenStats(ctx context.Context, ownerID, tokenID string) (*ShareStats, error) {
	if _, err := s.ownedToken(ctx, ownerID, tokenID); err != nil {
		return nil, err
	}

	totals, err := s.logs.Totals(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	stats := &ShareStats{
		Totals:     *totals,
		Breakdowns: make(map[string][]model.AccessCategory, len(breakdownDimensions)),
	}

	now := s.now().Unix()
	if stats.Today, err = s.period(ctx, tokenID, timeutil.StartOfDay(now, s.loc), now, 24*3600); err != nil {
		return nil, err
	}
	if stats.ThisWeek, err = s.period(ctx, tokenID, timeutil.StartOfWeek(now, s.loc), now, 7*24*3600); err != nil {
		return nil, err
	}
	monthStart := timeutil.StartOfMonth(now, s.loc)
	prevMonthStart := timeutil.StartOfMonth(monthStart-1, s.loc)
	if stats.ThisMonth, err = s.periodBounds(ctx, tokenID, monthStart, now, prevMonthStart, monthStart); err != nil {
		return nil, err
	}

	fromDay := timeutil.DayOf(now-int64(dailyWindowDays-1)*24*3600, s.loc)
	toDay := timeutil.DayOf(now, s.loc)
	if stats.Daily, err = s.logs.DailyBuckets(ctx, tokenID, fromDay, toDay); err != nil {
		return nil, err
	}
	if stats.Hourly, err = s.logs.HourlyBuckets(ctx, tokenID); err != nil {
		return nil, err
	}

	for _, dimension := range breakdownDimensions {
		categories, err := s.logs.BreakdownBy(ctx, tokenID, dimension)
		if err != nil {
			return nil, err
		}
		stats.Breakdowns[dimension] = withPercentages(categories, stats.Totals.TotalAccessCount)
	}
	return stats, nil
}

// period computes the current window count and its growth against the window
// of the same length immediately before it.
func (s *StatsService) period(ctx context.Context, tokenID string, start, now, length int64) (PeriodStat, error) {
	return s.periodBounds(ctx, tokenID, start, now, start-length, start)
}

func (s *StatsService) periodBounds(ctx context.Context, tokenID string, start, now, prevStart, prevEnd int64) (PeriodStat, error) {
	current, err := s.logs.CountBetween(ctx, tokenID, start, now+1)
	if err != nil {
		return PeriodStat{}, err
	}
	previous, err := s.logs.CountBetween(ctx, tokenID, prevStart, prevEnd)
	if err != nil {
		return PeriodStat{}, err
	}
	return PeriodStat{Count: current, Previous: previous, GrowthRate: growthRate(current, previous)}, nil
}

// growthRate is 0 when the previous period is empty; never a division error
// or infinity.
func growthRate(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return round2(float64(current-previous) / float64(previous))
}

// withPercentages rounds each share of the total to two decimals; the
// rounded values sum to 100 within the per-entry tolerance.
func withPercentages(categories []model.AccessCategory, total int64) []model.AccessCategory {
	if total <= 0 {
		return categories
	}
	for i := range categories {
		categories[i].Percentage = round2(100 * float64(categories[i].Count) / float64(total))
	}
	return categories
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

type AccessLogPage struct {
	Items []model.AccessLogEntry `json:"items"`
	Total int64                  `json:"total"`
}

// AccessLogs lists raw log entries for one of the owner's tokens, filtered
// and paginated.
func (s *StatsService) AccessLogs(ctx context.Context, ownerID, tokenID string, filter model.AccessLogFilter) (*AccessLogPage, error) {
	if _, err := s.ownedToken(ctx, ownerID, tokenID); err != nil {
		return nil, err
	}
	filter.TokenID = tokenID
	if filter.Limit == 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	total, err := s.logs.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &AccessLogPage{Items: items, Total: total}, nil
}

func (s *StatsService) ownedToken(ctx context.Context, ownerID, tokenID string) (*model.ShareToken, error) {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.CreatedBy != ownerID {
		return nil, appErr.ErrForbidden
	}
	return token, nil
}
