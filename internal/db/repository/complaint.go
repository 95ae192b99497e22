package repository

import (
	"context"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ComplaintRepository defines operations for managing complaints.
type ComplaintRepository interface {
	// Create inserts a new complaint and sets its ID.
	Create(ctx context.Context, complaint *models.Complaint) error

	// GetByID retrieves a complaint by ID.
	GetByID(ctx context.Context, id int64) (*models.Complaint, error)

	// List retrieves complaints with the given status, oldest first. An empty
	// status lists all complaints.
	List(ctx context.Context, status string, limit, offset int) ([]*models.Complaint, error)

	// Close marks a complaint closed.
	Close(ctx context.Context, id int64) (*models.Complaint, error)

	// CountOpen counts open complaints.
	CountOpen(ctx context.Context) (int, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository creates a new ComplaintRepository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, reporter_id, accused_id, task_id, reason, proof_snapshot, status, created_at, closed_at`

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	c := &models.Complaint{}
	err := row.Scan(&c.ID, &c.ReporterID, &c.AccusedID, &c.TaskID, &c.Reason, &c.ProofSnapshot, &c.Status, &c.CreatedAt, &c.ClosedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *complaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	query := `
		INSERT INTO complaints (reporter_id, accused_id, task_id, reason, proof_snapshot, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		complaint.ReporterID,
		complaint.AccusedID,
		complaint.TaskID,
		complaint.Reason,
		complaint.ProofSnapshot,
		complaint.Status,
		complaint.CreatedAt,
	).Scan(&complaint.ID)
	if err != nil {
		return db.WrapError(err, "create complaint")
	}
	return nil
}

func (r *complaintRepository) GetByID(ctx context.Context, id int64) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`

	complaint, err := scanComplaint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get complaint by id")
	}
	return complaint, nil
}

func (r *complaintRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, db.WrapError(err, "list complaints")
	}
	defer rows.Close()

	var complaints []*models.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return complaints, nil
}

func (r *complaintRepository) Close(ctx context.Context, id int64) (*models.Complaint, error) {
	query := `
		UPDATE complaints SET status = $2, closed_at = COALESCE(closed_at, NOW())
		WHERE id = $1
		RETURNING ` + complaintColumns

	complaint, err := scanComplaint(r.pool.QueryRow(ctx, query, id, models.ComplaintClosed))
	if err != nil {
		return nil, db.WrapError(err, "close complaint")
	}
	return complaint, nil
}

func (r *complaintRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM complaints WHERE status = $1`, models.ComplaintOpen).Scan(&count)
	if err != nil {
		return 0, db.WrapError(err, "count open complaints")
	}
	return count, nil
}
