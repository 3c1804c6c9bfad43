// Package agent provides livechat agent persistence and the status
// bookkeeping driven by business hour reconciliation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when an agent does not exist.
	ErrNotFound = errors.New("agent not found")
)

// Status is an agent's livechat availability status.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusNotAvailable Status = "not-available"
)

// Agent is the business-hour-relevant subset of a livechat user. Agents are
// created and removed by an external user-management subsystem; this package
// only reads and updates their business hour associations and status.
type Agent struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	BusinessHourIDs     []string  `json:"businessHourIds"`
	OpenBusinessHourIDs []string  `json:"openBusinessHourIds"`
	Status              Status    `json:"status"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Store defines the agent repository contract the reconciliation engine
// depends on.
type Store interface {
	// Get retrieves an agent by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Agent, error)

	// IsWithinBusinessHours reports whether the agent has no business hour
	// constraint, or has at least one currently open assigned business hour.
	IsWithinBusinessHours(ctx context.Context, agentID string) (bool, error)

	// OpenBusinessHours adds the intersection of each agent's assigned
	// business hours and ids to that agent's open set. Agents assigned only to
	// business hours outside ids are not touched. A reconciliation pass clears
	// open sets first, so clear-then-open yields exactly ids.
	OpenBusinessHours(ctx context.Context, ids []string) error

	// CloseBusinessHours removes ids from every agent's open set.
	CloseBusinessHours(ctx context.Context, ids []string) error

	// RemoveBusinessHoursFromAgents clears every agent's open set. Affecting
	// zero agents is a no-op, not an error.
	RemoveBusinessHoursFromAgents(ctx context.Context) error

	// DetachBusinessHour removes a business hour id from every agent's
	// assigned and open sets.
	DetachBusinessHour(ctx context.Context, businessHourID string) error

	// AssignBusinessHour adds a business hour id to the given agents'
	// assigned sets.
	AssignBusinessHour(ctx context.Context, agentIDs []string, businessHourID string) error

	// UpdateLivechatStatus recomputes every agent's status from its business
	// hour state: available iff unconstrained or at least one open window.
	UpdateLivechatStatus(ctx context.Context) error
}

// PostgresStore implements Store using PostgreSQL through pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL agent store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get retrieves an agent by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Agent, error) {
	a := &Agent{}

	err := s.pool.QueryRow(ctx, `
		SELECT id, username, business_hour_ids, open_business_hour_ids, status, updated_at
		FROM livechat_agents WHERE id = $1
	`, id).Scan(&a.ID, &a.Username, &a.BusinessHourIDs, &a.OpenBusinessHourIDs, &a.Status, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query agent: %w", err)
	}

	return a, nil
}

// IsWithinBusinessHours reports whether the agent may be available right now.
func (s *PostgresStore) IsWithinBusinessHours(ctx context.Context, agentID string) (bool, error) {
	var allowed bool

	err := s.pool.QueryRow(ctx, `
		SELECT cardinality(business_hour_ids) = 0 OR cardinality(open_business_hour_ids) > 0
		FROM livechat_agents WHERE id = $1
	`, agentID).Scan(&allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("query agent business hours: %w", err)
	}

	return allowed, nil
}

// OpenBusinessHours adds assigned ∩ ids to every agent's open set in a single
// statement, so each pass is atomic from the agents' perspective.
func (s *PostgresStore) OpenBusinessHours(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET open_business_hour_ids = (
			SELECT COALESCE(array_agg(DISTINCT bh), '{}')
			FROM unnest(business_hour_ids || open_business_hour_ids) bh
			WHERE bh = ANY(open_business_hour_ids) OR bh = ANY($1)
		), updated_at = NOW()
		WHERE business_hour_ids && $1
	`, ids)
	if err != nil {
		return fmt.Errorf("open agents business hours: %w", err)
	}

	return nil
}

// CloseBusinessHours removes ids from every agent's open set.
func (s *PostgresStore) CloseBusinessHours(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET open_business_hour_ids = (
			SELECT COALESCE(array_agg(bh), '{}') FROM unnest(open_business_hour_ids) bh WHERE NOT (bh = ANY($1))
		), updated_at = NOW()
		WHERE open_business_hour_ids && $1
	`, ids)
	if err != nil {
		return fmt.Errorf("close agents business hours: %w", err)
	}

	return nil
}

// RemoveBusinessHoursFromAgents clears every agent's open set.
func (s *PostgresStore) RemoveBusinessHoursFromAgents(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET open_business_hour_ids = '{}', updated_at = NOW()
		WHERE cardinality(open_business_hour_ids) > 0
	`)
	if err != nil {
		return fmt.Errorf("remove business hours from agents: %w", err)
	}

	return nil
}

// DetachBusinessHour removes a business hour id from every agent referencing it.
func (s *PostgresStore) DetachBusinessHour(ctx context.Context, businessHourID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET business_hour_ids = array_remove(business_hour_ids, $1),
			open_business_hour_ids = array_remove(open_business_hour_ids, $1),
			updated_at = NOW()
		WHERE $1 = ANY(business_hour_ids) OR $1 = ANY(open_business_hour_ids)
	`, businessHourID)
	if err != nil {
		return fmt.Errorf("detach business hour: %w", err)
	}

	return nil
}

// AssignBusinessHour adds a business hour id to the given agents.
func (s *PostgresStore) AssignBusinessHour(ctx context.Context, agentIDs []string, businessHourID string) error {
	if len(agentIDs) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET business_hour_ids = array_append(array_remove(business_hour_ids, $2), $2),
			updated_at = NOW()
		WHERE id = ANY($1)
	`, agentIDs, businessHourID)
	if err != nil {
		return fmt.Errorf("assign business hour: %w", err)
	}

	return nil
}

// UpdateLivechatStatus recomputes every agent's status from its business hour
// state in a single statement.
func (s *PostgresStore) UpdateLivechatStatus(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE livechat_agents
		SET status = CASE
			WHEN cardinality(business_hour_ids) = 0 THEN 'available'
			WHEN cardinality(open_business_hour_ids) > 0 THEN 'available'
			ELSE 'not-available'
		END, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("update livechat status: %w", err)
	}

	return nil
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
