package store

import (
	"context"
	"time"
)

// DailyReport returns every observation, measurement and feeding recorded
// on the UTC calendar day containing day.
func (s *SQLiteStore) DailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	lo, hi := formatTime(from), formatTime(to)

	obs, err := s.queryObservations(ctx,
		observationSelect+` WHERE o.timestamp >= ? AND o.timestamp < ? ORDER BY o.timestamp, o.id`, lo, hi)
	if err != nil {
		return nil, err
	}
	ms, err := s.queryMeasurements(ctx,
		measurementSelect+` WHERE m.timestamp >= ? AND m.timestamp < ? ORDER BY m.timestamp, m.id`, lo, hi)
	if err != nil {
		return nil, err
	}
	fs, err := s.queryFeedings(ctx,
		feedingSelect+` WHERE f.timestamp >= ? AND f.timestamp < ? ORDER BY f.timestamp, f.id`, lo, hi)
	if err != nil {
		return nil, err
	}

	if obs == nil {
		obs = []*Observation{}
	}
	if ms == nil {
		ms = []*Measurement{}
	}
	if fs == nil {
		fs = []*Feeding{}
	}
	return &DailyReport{
		Date:              from.Format(time.DateOnly),
		ObservationsCount: len(obs),
		Observations:      obs,
		MeasurementsCount: len(ms),
		Measurements:      ms,
		FeedingsCount:     len(fs),
		Feedings:          fs,
	}, nil
}
