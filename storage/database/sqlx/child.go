package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
)

type childRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	BirthDate null.Time   `db:"birth_date"`
	PhotoURL  null.String `db:"photo_url"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func (r childRow) unpack() child.Child {
	return child.Child{
		ID:        r.ID,
		Name:      r.Name,
		BirthDate: r.BirthDate,
		PhotoURL:  r.PhotoURL,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type guardianLinkRow struct {
	ID           string    `db:"id"`
	ParentID     string    `db:"parent_id"`
	ChildID      string    `db:"child_id"`
	Relationship string    `db:"relationship"`
	IsPrimary    bool      `db:"is_primary"`
	CreatedAt    null.Time `db:"created_at"`
	ParentName   string    `db:"parent_name"`
}

func (r guardianLinkRow) unpack() child.GuardianLink {
	return child.GuardianLink{
		ID:           r.ID,
		ParentID:     r.ParentID,
		ChildID:      r.ChildID,
		Relationship: r.Relationship,
		IsPrimary:    r.IsPrimary,
		CreatedAt:    r.CreatedAt.Time,
		ParentName:   r.ParentName,
	}
}

type authorizedPersonRow struct {
	ID           string    `db:"id"`
	ChildID      string    `db:"child_id"`
	Name         string    `db:"name"`
	Relationship string    `db:"relationship"`
	Phone        string    `db:"phone"`
	CreatedAt    null.Time `db:"created_at"`
}

func (r authorizedPersonRow) unpack() child.AuthorizedPerson {
	return child.AuthorizedPerson{
		ID:           r.ID,
		ChildID:      r.ChildID,
		Name:         r.Name,
		Relationship: r.Relationship,
		Phone:        r.Phone,
		CreatedAt:    r.CreatedAt.Time,
	}
}

type childRepository struct {
	db *sqlx.DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *sqlx.DB) *childRepository {
	return &childRepository{db: db}
}

func (repo childRepository) CreateChild(ctx context.Context, c child.Child, exec ...core.DBExecutor) (child.Child, error) {
	c.ID = uuid.New().String()
	row := childRow{
		ID:        c.ID,
		Name:      c.Name,
		BirthDate: c.BirthDate,
		PhotoURL:  c.PhotoURL,
		CreatedAt: null.NewTime(c.CreatedAt.UTC(), !c.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(c.UpdatedAt.UTC(), !c.UpdatedAt.IsZero()),
	}
	q := `INSERT INTO children (id, name, birth_date, photo_url, created_at, updated_at)
	      VALUES (:id, :name, :birth_date, :photo_url, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), q, row); err != nil {
		return child.Child{}, errors.Wrap(err, "inserting child")
	}
	return row.unpack(), nil
}

func (repo childRepository) QueryChildren(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]child.Child, error) {
	q := "SELECT * FROM children"
	if len(ordering) > 0 {
		q += " ORDER BY " + ordering[0].String()
	}
	ext := getExec(repo.db, exec)
	var rows []childRow
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q)); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	children := make([]child.Child, 0, len(rows))
	for _, r := range rows {
		children = append(children, r.unpack())
	}
	return children, nil
}

func (repo childRepository) GetChildByID(ctx context.Context, id string, exec ...core.DBExecutor) (child.Child, error) {
	ext := getExec(repo.db, exec)
	var row childRow
	if err := sqlx.GetContext(ctx, ext, &row, ext.Rebind("SELECT * FROM children WHERE id = ?"), id); err != nil {
		return child.Child{}, trapNoRowsErr(errors.Cause(err), child.ErrNotFound)
	}
	return row.unpack(), nil
}

func (repo childRepository) QueryChildrenByGuardian(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]child.Child, error) {
	q := `SELECT c.* FROM children c
	      JOIN guardian_links gl ON gl.child_id = c.id
	      WHERE gl.parent_id = ?
	      ORDER BY c.name ASC`
	ext := getExec(repo.db, exec)
	var rows []childRow
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), parentID); err != nil {
		return nil, errors.Wrap(err, "querying children by guardian")
	}
	children := make([]child.Child, 0, len(rows))
	for _, r := range rows {
		children = append(children, r.unpack())
	}
	return children, nil
}

func (repo childRepository) CreateGuardianLink(ctx context.Context, gl child.GuardianLink, exec ...core.DBExecutor) (child.GuardianLink, error) {
	gl.ID = uuid.New().String()
	row := guardianLinkRow{
		ID:           gl.ID,
		ParentID:     gl.ParentID,
		ChildID:      gl.ChildID,
		Relationship: gl.Relationship,
		IsPrimary:    gl.IsPrimary,
		CreatedAt:    null.NewTime(gl.CreatedAt.UTC(), !gl.CreatedAt.IsZero()),
	}
	q := `INSERT INTO guardian_links (id, parent_id, child_id, relationship, is_primary, created_at)
	      VALUES (:id, :parent_id, :child_id, :relationship, :is_primary, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), q, row); err != nil {
		return child.GuardianLink{}, errors.Wrap(err, "inserting guardian link")
	}
	return row.unpack(), nil
}

func (repo childRepository) QueryGuardianLinks(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.GuardianLink, error) {
	q := `SELECT gl.*, u.name AS parent_name FROM guardian_links gl
	      JOIN users u ON u.id = gl.parent_id
	      WHERE gl.child_id = ?
	      ORDER BY gl.is_primary DESC, gl.created_at ASC`
	ext := getExec(repo.db, exec)
	var rows []guardianLinkRow
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), childID); err != nil {
		return nil, errors.Wrap(err, "querying guardian links")
	}
	links := make([]child.GuardianLink, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.unpack())
	}
	return links, nil
}

func (repo childRepository) IsGuardian(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) (bool, error) {
	ext := getExec(repo.db, exec)
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM guardian_links WHERE parent_id = ? AND child_id = ?)"
	if err := sqlx.GetContext(ctx, ext, &exists, ext.Rebind(q), parentID, childID); err != nil {
		return false, errors.Wrap(err, "checking guardian link")
	}
	return exists, nil
}

func (repo childRepository) CreateAuthorizedPerson(ctx context.Context, ap child.AuthorizedPerson, exec ...core.DBExecutor) (child.AuthorizedPerson, error) {
	ap.ID = uuid.New().String()
	row := authorizedPersonRow{
		ID:           ap.ID,
		ChildID:      ap.ChildID,
		Name:         ap.Name,
		Relationship: ap.Relationship,
		Phone:        ap.Phone,
		CreatedAt:    null.NewTime(ap.CreatedAt.UTC(), !ap.CreatedAt.IsZero()),
	}
	q := `INSERT INTO authorized_persons (id, child_id, name, relationship, phone, created_at)
	      VALUES (:id, :child_id, :name, :relationship, :phone, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), q, row); err != nil {
		return child.AuthorizedPerson{}, errors.Wrap(err, "inserting authorized person")
	}
	return row.unpack(), nil
}

func (repo childRepository) QueryAuthorizedPersons(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.AuthorizedPerson, error) {
	q := "SELECT * FROM authorized_persons WHERE child_id = ? ORDER BY name ASC"
	ext := getExec(repo.db, exec)
	var rows []authorizedPersonRow
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), childID); err != nil {
		return nil, errors.Wrap(err, "querying authorized persons")
	}
	persons := make([]child.AuthorizedPerson, 0, len(rows))
	for _, r := range rows {
		persons = append(persons, r.unpack())
	}
	return persons, nil
}

func (repo childRepository) GetAuthorizedPerson(ctx context.Context, id string, exec ...core.DBExecutor) (child.AuthorizedPerson, error) {
	ext := getExec(repo.db, exec)
	var row authorizedPersonRow
	if err := sqlx.GetContext(ctx, ext, &row, ext.Rebind("SELECT * FROM authorized_persons WHERE id = ?"), id); err != nil {
		return child.AuthorizedPerson{}, trapNoRowsErr(errors.Cause(err), child.ErrPersonNotFound)
	}
	return row.unpack(), nil
}
