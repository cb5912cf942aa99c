package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/pickup"
)

type requestRow struct {
	ID               string      `db:"id"`
	ChildID          string      `db:"child_id"`
	ParentID         string      `db:"parent_id"`
	PickupPersonName string      `db:"pickup_person_name"`
	PickupPersonID   null.String `db:"pickup_person_id"`
	Status           string      `db:"status"`
	RequestedAt      time.Time   `db:"requested_at"`
	ApprovedBy       null.String `db:"approved_by"`
	ApprovedAt       null.Time   `db:"approved_at"`

	ChildName     null.String `db:"child_name"`
	ChildPhotoURL null.String `db:"child_photo_url"`
	ParentName    null.String `db:"parent_name"`
}

func (r requestRow) unpack() pickup.Request {
	return pickup.Request{
		ID:               r.ID,
		ChildID:          r.ChildID,
		ParentID:         r.ParentID,
		PickupPersonName: r.PickupPersonName,
		PickupPersonID:   r.PickupPersonID,
		Status:           pickup.Status(r.Status),
		RequestedAt:      r.RequestedAt,
		ApprovedBy:       r.ApprovedBy,
		ApprovedAt:       r.ApprovedAt,
		ChildName:        r.ChildName.String,
		ChildPhotoURL:    r.ChildPhotoURL,
		ParentName:       r.ParentName.String,
	}
}

func unpackRequests(rows []requestRow) []pickup.Request {
	reqs := make([]pickup.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.unpack())
	}
	return reqs
}

// selectRequests joins the display names used by the dashboards.
const selectRequests = `
SELECT r.*, c.name AS child_name, c.photo_url AS child_photo_url, u.name AS parent_name
FROM pickup_requests r
JOIN children c ON c.id = r.child_id
JOIN users u ON u.id = r.parent_id`

type requestRepository struct {
	db *sqlx.DB
}

var _ pickup.Repository = (*requestRepository)(nil) // interface compliance check

func NewRequestRepository(db *sqlx.DB) *requestRepository {
	return &requestRepository{db: db}
}

func (repo requestRepository) CreateRequest(ctx context.Context, r pickup.Request, exec ...core.DBExecutor) (pickup.Request, error) {
	r.ID = uuid.New().String()
	row := requestRow{
		ID:               r.ID,
		ChildID:          r.ChildID,
		ParentID:         r.ParentID,
		PickupPersonName: r.PickupPersonName,
		PickupPersonID:   r.PickupPersonID,
		Status:           string(r.Status),
		RequestedAt:      r.RequestedAt.UTC(),
	}
	q := `INSERT INTO pickup_requests (id, child_id, parent_id, pickup_person_name, pickup_person_id, status, requested_at)
	      VALUES (:id, :child_id, :parent_id, :pickup_person_name, :pickup_person_id, :status, :requested_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), q, row); err != nil {
		return pickup.Request{}, errors.Wrap(err, "inserting pickup request")
	}
	return repo.GetRequestByID(ctx, r.ID, exec...)
}

func (repo requestRepository) GetRequestByID(ctx context.Context, id string, exec ...core.DBExecutor) (pickup.Request, error) {
	ext := getExec(repo.db, exec)
	var row requestRow
	q := selectRequests + " WHERE r.id = ?"
	if err := sqlx.GetContext(ctx, ext, &row, ext.Rebind(q), id); err != nil {
		return pickup.Request{}, trapNoRowsErr(errors.Cause(err), pickup.ErrNotFound)
	}
	return row.unpack(), nil
}

func (repo requestRepository) QueryPending(ctx context.Context, exec ...core.DBExecutor) ([]pickup.Request, error) {
	ext := getExec(repo.db, exec)
	var rows []requestRow
	q := selectRequests + " WHERE r.status = ? ORDER BY r.requested_at DESC"
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), string(pickup.StatusPending)); err != nil {
		return nil, errors.Wrap(err, "querying pending requests")
	}
	return unpackRequests(rows), nil
}

func (repo requestRepository) QueryApproved(ctx context.Context, limit int, exec ...core.DBExecutor) ([]pickup.Request, error) {
	ext := getExec(repo.db, exec)
	var rows []requestRow
	q := selectRequests + " WHERE r.status = ? ORDER BY r.approved_at DESC LIMIT ?"
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), string(pickup.StatusApproved), limit); err != nil {
		return nil, errors.Wrap(err, "querying approved requests")
	}
	return unpackRequests(rows), nil
}

func (repo requestRepository) LastApproved(ctx context.Context, childID string, exec ...core.DBExecutor) (pickup.Request, error) {
	ext := getExec(repo.db, exec)
	var row requestRow
	q := selectRequests + " WHERE r.child_id = ? AND r.status = ? ORDER BY r.approved_at DESC LIMIT 1"
	if err := sqlx.GetContext(ctx, ext, &row, ext.Rebind(q), childID, string(pickup.StatusApproved)); err != nil {
		return pickup.Request{}, trapNoRowsErr(errors.Cause(err), pickup.ErrNotFound)
	}
	return row.unpack(), nil
}

func (repo requestRepository) TransitionRequest(ctx context.Context, id string, to pickup.Status, approverID string, at time.Time, exec ...core.DBExecutor) (pickup.Request, error) {
	ext := getExec(repo.db, exec)

	// conditional update: only a pending request may be decided, so a
	// concurrent decision race has exactly one winner
	q := `UPDATE pickup_requests SET status = ?, approved_by = ?, approved_at = ?
	      WHERE id = ? AND status = ?`
	res, err := ext.ExecContext(ctx, ext.Rebind(q), string(to), approverID, at.UTC(), id, string(pickup.StatusPending))
	if err != nil {
		return pickup.Request{}, errors.Wrap(err, "transitioning pickup request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pickup.Request{}, errors.Wrap(err, "transitioning pickup request")
	}
	if n == 0 {
		// lost the race, or no such request
		if _, err := repo.GetRequestByID(ctx, id, exec...); err != nil {
			return pickup.Request{}, err
		}
		return pickup.Request{}, pickup.ErrNotPending
	}
	return repo.GetRequestByID(ctx, id, exec...)
}
