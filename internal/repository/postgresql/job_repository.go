package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caption-worker-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

// JobRepository is the durable FIFO job store on Postgres. Atomicity between
// the worker's claim and the control API's remove comes from single-statement
// DELETEs: row locks guarantee that a job is removed exactly once, whichever
// side wins.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Enqueue(ctx context.Context, job entity.Job) (int64, error) {
	const q = `
INSERT INTO jobs (external_reference_id, resource_locator, backend_selector)
VALUES ($1, $2, $3)
RETURNING id;
`
	var id int64
	if err := r.pool.QueryRow(ctx, q, job.ExternalRefID, job.ResourceLocator, job.Backend).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ClaimOldest atomically fetches and deletes the lowest-id pending job.
// SKIP LOCKED keeps a concurrent remove (or a second worker) from blocking on
// or double-claiming the same row. Returns entity.ErrNoJob when empty.
func (r *JobRepository) ClaimOldest(ctx context.Context) (*entity.Job, error) {
	const q = `
DELETE FROM jobs
WHERE id = (
    SELECT id FROM jobs
    ORDER BY id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, external_reference_id, resource_locator, backend_selector, created_at;
`
	var job entity.Job
	err := r.pool.QueryRow(ctx, q).Scan(
		&job.ID,
		&job.ExternalRefID,
		&job.ResourceLocator,
		&job.Backend,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNoJob
		}
		return nil, err
	}
	return &job, nil
}

// Remove deletes all still-pending jobs for the given reference id and
// reports whether anything was removed. A missing id is a no-op, not an error.
func (r *JobRepository) Remove(ctx context.Context, externalRefID string) (bool, error) {
	const q = `DELETE FROM jobs WHERE external_reference_id = $1;`

	tag, err := r.pool.Exec(ctx, q, externalRefID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepository) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM jobs;`

	var n int
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
