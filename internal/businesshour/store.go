package businesshour

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kneutral-org/livechat-hours/internal/metrics"
)

var (
	// ErrNotFound is returned when a business hour does not exist.
	ErrNotFound = errors.New("business hour not found")
	// ErrInvalidBusinessHour is returned when a business hour definition fails validation.
	ErrInvalidBusinessHour = errors.New("invalid business hour")
)

// Projection selects which fields a query must populate. Queries are free to
// return more than requested; projections are an optimization, not a
// correctness requirement.
type Projection struct {
	WorkHoursOnly bool
}

// Store defines the interface for business hour persistence.
type Store interface {
	// Save creates a business hour or updates it by id.
	Save(ctx context.Context, bh *BusinessHour) (*BusinessHour, error)

	// Get retrieves a business hour by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*BusinessHour, error)

	// List retrieves all business hours.
	List(ctx context.Context) ([]*BusinessHour, error)

	// Delete removes a business hour by id, or ErrNotFound.
	Delete(ctx context.Context, id string) error

	// FindActiveByDay retrieves active business hours with at least one work
	// hour entry for the given weekday.
	FindActiveByDay(ctx context.Context, day Weekday, projection Projection) ([]*BusinessHour, error)

	// FindHoursToScheduleJobs returns the distinct trigger tuples the external
	// scheduler must register, derived from all active windows.
	FindHoursToScheduleJobs(ctx context.Context) ([]ScheduleTrigger, error)

	// OpenByDayAndTime marks business hours whose window starts at the given
	// UTC day/time open and returns their ids. Idempotent.
	OpenByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error)

	// CloseByDayAndTime marks business hours whose window finishes at the given
	// UTC day/time closed and returns their ids. Idempotent.
	CloseByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error)
}

// PostgresStore implements Store using PostgreSQL through database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save creates a business hour or updates it by id.
func (s *PostgresStore) Save(ctx context.Context, bh *BusinessHour) (*BusinessHour, error) {
	if err := bh.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("save_business_hour", time.Since(start).Seconds()) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if bh.ID == "" {
		bh.ID = uuid.New().String()
		bh.CreatedAt = time.Now().UTC()
	}
	bh.UpdatedAt = time.Now().UTC()
	if bh.CreatedAt.IsZero() {
		bh.CreatedAt = bh.UpdatedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO business_hours (id, name, active, open, is_default, tz_name, tz_offset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, active = EXCLUDED.active, is_default = EXCLUDED.is_default,
			tz_name = EXCLUDED.tz_name, tz_offset = EXCLUDED.tz_offset, updated_at = EXCLUDED.updated_at
	`, bh.ID, bh.Name, bh.Active, bh.Open, bh.Default, bh.Timezone.Name, bh.Timezone.UTCOffset, bh.CreatedAt, bh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert business hour: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM work_hours WHERE business_hour_id = $1", bh.ID)
	if err != nil {
		return nil, fmt.Errorf("clear work hours: %w", err)
	}

	for _, wh := range bh.WorkHours {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO work_hours (business_hour_id, day, start_minutes, finish_minutes)
			VALUES ($1, $2, $3, $4)
		`, bh.ID, string(wh.Day), wh.Start.Minutes(), wh.Finish.Minutes())
		if err != nil {
			return nil, fmt.Errorf("insert work hour: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return bh, nil
}

// Get retrieves a business hour by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*BusinessHour, error) {
	bh := &BusinessHour{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, open, is_default, tz_name, tz_offset, created_at, updated_at
		FROM business_hours WHERE id = $1
	`, id).Scan(&bh.ID, &bh.Name, &bh.Active, &bh.Open, &bh.Default,
		&bh.Timezone.Name, &bh.Timezone.UTCOffset, &bh.CreatedAt, &bh.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query business hour: %w", err)
	}

	workHours, err := s.loadWorkHours(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load work hours: %w", err)
	}
	bh.WorkHours = workHours

	return bh, nil
}

// List retrieves all business hours ordered by name.
func (s *PostgresStore) List(ctx context.Context) ([]*BusinessHour, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active, open, is_default, tz_name, tz_offset, created_at, updated_at
		FROM business_hours ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query business hours: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hours []*BusinessHour
	for rows.Next() {
		bh := &BusinessHour{}
		if err := rows.Scan(&bh.ID, &bh.Name, &bh.Active, &bh.Open, &bh.Default,
			&bh.Timezone.Name, &bh.Timezone.UTCOffset, &bh.CreatedAt, &bh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan business hour: %w", err)
		}
		hours = append(hours, bh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, bh := range hours {
		workHours, err := s.loadWorkHours(ctx, bh.ID)
		if err != nil {
			return nil, fmt.Errorf("load work hours: %w", err)
		}
		bh.WorkHours = workHours
	}

	return hours, nil
}

// Delete removes a business hour and its work hours.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM business_hours WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete business hour: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// FindActiveByDay retrieves active business hours having a work hour entry for
// the given weekday. Only the id, work hours and timezone are guaranteed to be
// populated when the projection asks for work hours only.
func (s *PostgresStore) FindActiveByDay(ctx context.Context, day Weekday, projection Projection) ([]*BusinessHour, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT b.id, b.active, b.tz_name, b.tz_offset
		FROM business_hours b
		JOIN work_hours w ON w.business_hour_id = b.id
		WHERE b.active = TRUE AND w.day = $1
		ORDER BY b.id
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("query active business hours: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hours []*BusinessHour
	for rows.Next() {
		bh := &BusinessHour{}
		if err := rows.Scan(&bh.ID, &bh.Active, &bh.Timezone.Name, &bh.Timezone.UTCOffset); err != nil {
			return nil, fmt.Errorf("scan business hour: %w", err)
		}
		hours = append(hours, bh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, bh := range hours {
		workHours, err := s.loadWorkHours(ctx, bh.ID)
		if err != nil {
			return nil, fmt.Errorf("load work hours: %w", err)
		}
		bh.WorkHours = workHours
	}

	return hours, nil
}

// FindHoursToScheduleJobs derives the scheduler trigger set from all active
// business hours.
func (s *PostgresStore) FindHoursToScheduleJobs(ctx context.Context) ([]ScheduleTrigger, error) {
	hours, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return ScheduleTriggers(hours), nil
}

// OpenByDayAndTime marks business hours whose window starts at the given UTC
// day/time open. The trigger time arrives UTC-adjusted, so it is shifted back
// to the business hours' local wall clock for matching.
func (s *PostgresStore) OpenByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error) {
	local := shiftFromUTC(t, utcOffset)
	return s.setOpenByBoundary(ctx, day, local, utcOffset, "start_minutes", true)
}

// CloseByDayAndTime marks business hours whose window finishes at the given
// UTC day/time closed.
func (s *PostgresStore) CloseByDayAndTime(ctx context.Context, day Weekday, t TimeOfDay, utcOffset float64) ([]string, error) {
	local := shiftFromUTC(t, utcOffset)
	return s.setOpenByBoundary(ctx, day, local, utcOffset, "finish_minutes", false)
}

func (s *PostgresStore) setOpenByBoundary(ctx context.Context, day Weekday, local TimeOfDay, utcOffset float64, boundaryColumn string, open bool) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("set_open_by_boundary", time.Since(start).Seconds()) }()

	query := fmt.Sprintf(`
		UPDATE business_hours SET open = $1, updated_at = $2
		WHERE active = TRUE AND tz_offset = $3 AND id IN (
			SELECT business_hour_id FROM work_hours WHERE day = $4 AND %s = $5
		)
		RETURNING id
	`, boundaryColumn)

	rows, err := s.db.QueryContext(ctx, query, open, time.Now().UTC(), utcOffset, string(day), local.Minutes())
	if err != nil {
		return nil, fmt.Errorf("update open state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan business hour id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *PostgresStore) loadWorkHours(ctx context.Context, businessHourID string) ([]WorkHour, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, start_minutes, finish_minutes
		FROM work_hours WHERE business_hour_id = $1 ORDER BY day
	`, businessHourID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var workHours []WorkHour
	for rows.Next() {
		var day string
		var startMinutes, finishMinutes int
		if err := rows.Scan(&day, &startMinutes, &finishMinutes); err != nil {
			return nil, err
		}
		workHours = append(workHours, WorkHour{
			Day:    Weekday(day),
			Start:  TimeOfDayFromMinutes(startMinutes),
			Finish: TimeOfDayFromMinutes(finishMinutes),
		})
	}

	return workHours, rows.Err()
}

// shiftFromUTC converts a UTC-referenced time back to the local wall clock of
// a fixed offset, wrapping within a single day.
func shiftFromUTC(t TimeOfDay, utcOffsetHours float64) TimeOfDay {
	offsetMinutes := int(utcOffsetHours * 60)
	return TimeOfDayFromMinutes(t.Minutes() + offsetMinutes)
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
