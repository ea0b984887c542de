package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stationmatrix-backend/models"
	"stationmatrix-backend/utils"

	"github.com/google/uuid"
)

// WorkingHourInput is one shift of a station's weekly schedule.
type WorkingHourInput struct {
	Weekday  int    `json:"weekday"`
	OpensAt  string `json:"opensAt"`
	ClosesAt string `json:"closesAt"`
}

type shift struct {
	opens, closes time.Time
}

// ValidateWorkingHours checks every shift and numbers the shifts of each day
// in the order they open. Shifts of one day may not overlap.
func ValidateWorkingHours(in []WorkingHourInput) ([]models.StationWorkingHour, error) {
	byDay := map[int][]shift{}
	out := make([]models.StationWorkingHour, 0, len(in))
	for i, h := range in {
		field := fmt.Sprintf("hours[%d]", i)
		if h.Weekday < 0 || h.Weekday > 6 {
			return nil, invalid(field, "weekday must be between 0 and 6")
		}
		opens, err := utils.ParseClock(h.OpensAt)
		if err != nil {
			return nil, invalid(field, "opening time must be HH:MM")
		}
		closes, err := utils.ParseClock(h.ClosesAt)
		if err != nil {
			return nil, invalid(field, "closing time must be HH:MM")
		}
		if !closes.After(opens) {
			return nil, invalid(field, "closing time must be after opening time")
		}
		for _, other := range byDay[h.Weekday] {
			if opens.Before(other.closes) && other.opens.Before(closes) {
				return nil, invalid(field, "shifts of the same day overlap")
			}
		}
		byDay[h.Weekday] = append(byDay[h.Weekday], shift{opens, closes})
		out = append(out, models.StationWorkingHour{
			Weekday:  h.Weekday,
			OpensAt:  opens.Format("15:04"),
			ClosesAt: closes.Format("15:04"),
		})
	}

	sortWorkingHoursByOpening(out)
	day, order := -1, 0
	for i := range out {
		if out[i].Weekday != day {
			day, order = out[i].Weekday, 0
		}
		out[i].ShiftOrder = order
		order++
	}
	return out, nil
}

func sortWorkingHoursByOpening(hours []models.StationWorkingHour) {
	sort.SliceStable(hours, func(i, j int) bool {
		if hours[i].Weekday != hours[j].Weekday {
			return hours[i].Weekday < hours[j].Weekday
		}
		return hours[i].OpensAt < hours[j].OpensAt
	})
}

// StationWorkingHours lists the weekly schedule of a station.
func (s *MatrixSession) StationWorkingHours(ctx context.Context, stationID uuid.UUID) ([]models.StationWorkingHour, error) {
	s.lock()
	loaded := s.loaded
	_, known := s.registry.Station(stationID)
	s.mu.Unlock()
	if !loaded {
		return nil, ErrSessionNotLoaded
	}
	if !known {
		return nil, ErrNotFound
	}

	hours, err := s.gw.ListWorkingHours(ctx, stationID)
	if err != nil {
		return nil, persistenceError("list working hours", err)
	}
	sortWorkingHours(hours)
	return hours, nil
}

// SetStationWorkingHours replaces the weekly schedule of a station.
func (s *MatrixSession) SetStationWorkingHours(ctx context.Context, stationID uuid.UUID, in []WorkingHourInput) ([]models.StationWorkingHour, error) {
	hours, err := ValidateWorkingHours(in)
	if err != nil {
		return nil, err
	}
	err = s.edit(ctx, func() error {
		if _, ok := s.registry.Station(stationID); !ok {
			return ErrNotFound
		}
		if err := s.gw.ReplaceWorkingHours(ctx, stationID, hours); err != nil {
			return persistenceError("replace working hours", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.StationWorkingHours(ctx, stationID)
}
