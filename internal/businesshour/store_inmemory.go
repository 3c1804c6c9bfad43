package businesshour

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-memory implementation of Store for testing and
// single-node development mode.
type InMemoryStore struct {
	mu    sync.RWMutex
	hours map[string]*BusinessHour
}

// NewInMemoryStore creates a new in-memory business hour store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		hours: make(map[string]*BusinessHour),
	}
}

// Save creates a business hour or updates it by id.
func (s *InMemoryStore) Save(ctx context.Context, bh *BusinessHour) (*BusinessHour, error) {
	if err := bh.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bh.ID == "" {
		bh.ID = uuid.New().String()
		bh.CreatedAt = time.Now().UTC()
	}
	bh.UpdatedAt = time.Now().UTC()
	if bh.CreatedAt.IsZero() {
		bh.CreatedAt = bh.UpdatedAt
	}

	stored := copyBusinessHour(bh)
	s.hours[bh.ID] = stored

	return bh, nil
}

// Get retrieves a business hour by id.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*BusinessHour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bh, ok := s.hours[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyBusinessHour(bh), nil
}

// List retrieves all business hours ordered by name.
func (s *InMemoryStore) List(ctx context.Context) ([]*BusinessHour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hours := make([]*BusinessHour, 0, len(s.hours))
	for _, bh := range s.hours {
		hours = append(hours, copyBusinessHour(bh))
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Name < hours[j].Name })

	return hours, nil
}

// Delete removes a business hour by id.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hours[id]; !ok {
		return ErrNotFound
	}
	delete(s.hours, id)

	return nil
}

// FindActiveByDay retrieves active business hours having a work hour entry for
// the given weekday.
func (s *InMemoryStore) FindActiveByDay(ctx context.Context, day Weekday, projection Projection) ([]*BusinessHour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hours []*BusinessHour
	for _, bh := range s.hours {
		if bh.Active && len(bh.WorkHoursFor(day)) > 0 {
			hours = append(hours, copyBusinessHour(bh))
		}
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].ID < hours[j].ID })

	return hours, nil
}

// FindHoursToScheduleJobs derives the scheduler trigger set from all active
// business hours.
func (s *InMemoryStore) FindHoursToScheduleJobs(ctx context.Context) ([]ScheduleTrigger, error) {
	hours, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return ScheduleTriggers(hours), nil
}

// OpenByDayAndTime marks business hours whose window starts at the given UTC
// day/time open.
func (s *InMemoryStore) OpenByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error) {
	return s.setOpenByBoundary(day, t, utcOffset, true)
}

// CloseByDayAndTime marks business hours whose window finishes at the given
// UTC day/time closed.
func (s *InMemoryStore) CloseByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error) {
	return s.setOpenByBoundary(day, t, utcOffset, false)
}

func (s *InMemoryStore) setOpenByBoundary(day Weekday, t TimeOfDay, utcOffset float64, open bool) ([]string, error) {
	local := shiftFromUTC(t, utcOffset)

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, bh := range s.hours {
		if !bh.Active || bh.Timezone.UTCOffset != utcOffset {
			continue
		}
		for _, wh := range bh.WorkHoursFor(day) {
			boundary := wh.Start
			if !open {
				boundary = wh.Finish
			}
			if boundary == local {
				bh.Open = open
				bh.UpdatedAt = time.Now().UTC()
				ids = append(ids, bh.ID)
				break
			}
		}
	}
	sort.Strings(ids)

	return ids, nil
}

func copyBusinessHour(bh *BusinessHour) *BusinessHour {
	stored := *bh
	stored.WorkHours = append([]WorkHour(nil), bh.WorkHours...)
	return &stored
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
