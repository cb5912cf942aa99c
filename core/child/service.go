package child

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("child not found")
	ErrPersonNotFound = errors.New("authorized pickup person not found")
	ErrNotParent      = errors.New("user is not a parent")
)

type (
	Repository interface {
		CreateChild(ctx context.Context, c Child, exec ...core.DBExecutor) (Child, error)
		QueryChildren(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Child, error)
		GetChildByID(ctx context.Context, id string, exec ...core.DBExecutor) (Child, error)
		QueryChildrenByGuardian(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]Child, error)

		CreateGuardianLink(ctx context.Context, gl GuardianLink, exec ...core.DBExecutor) (GuardianLink, error)
		QueryGuardianLinks(ctx context.Context, childID string, exec ...core.DBExecutor) ([]GuardianLink, error)
		IsGuardian(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) (bool, error)

		CreateAuthorizedPerson(ctx context.Context, ap AuthorizedPerson, exec ...core.DBExecutor) (AuthorizedPerson, error)
		QueryAuthorizedPersons(ctx context.Context, childID string, exec ...core.DBExecutor) ([]AuthorizedPerson, error)
		GetAuthorizedPerson(ctx context.Context, id string, exec ...core.DBExecutor) (AuthorizedPerson, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewChild) (Child, error)
		Query(ctx context.Context) ([]Child, error)
		GetByID(ctx context.Context, id string) (Child, error)
		QueryByGuardian(ctx context.Context, parentID string) ([]Child, error)
		AddGuardian(ctx context.Context, ng NewGuardianLink) (GuardianLink, error)
		IsGuardian(ctx context.Context, parentID, childID string) (bool, error)
		AddAuthorizedPerson(ctx context.Context, na NewAuthorizedPerson) (AuthorizedPerson, error)
		AuthorizedPersons(ctx context.Context, childID string) ([]AuthorizedPerson, error)
		GetAuthorizedPerson(ctx context.Context, id string) (AuthorizedPerson, error)
		// PickupOptions lists the selectable pickup persons for a child:
		// the requesting parent first, then the child's authorized persons.
		PickupOptions(ctx context.Context, parent user.User, childID string) ([]PickupOption, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nc NewChild) (Child, error) {
	now := time.Now().UTC()
	c := Child{
		Name:      nc.Name,
		BirthDate: nc.BirthDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.PhotoURL != "" {
		c.PhotoURL.SetValid(nc.PhotoURL)
	}
	return svc.repo.CreateChild(ctx, c)
}

func (svc *service) Query(ctx context.Context) ([]Child, error) {
	children, err := svc.repo.QueryChildren(ctx, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, err
	}
	// attach guardians for admin display
	for i := range children {
		links, err := svc.repo.QueryGuardianLinks(ctx, children[i].ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying guardian links")
		}
		children[i].Guardians = links
	}
	return children, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Child, error) {
	return svc.repo.GetChildByID(ctx, id)
}

func (svc *service) QueryByGuardian(ctx context.Context, parentID string) ([]Child, error) {
	return svc.repo.QueryChildrenByGuardian(ctx, parentID)
}

func (svc *service) AddGuardian(ctx context.Context, ng NewGuardianLink) (GuardianLink, error) {
	if _, err := svc.repo.GetChildByID(ctx, ng.ChildID); err != nil {
		return GuardianLink{}, err
	}
	gl := GuardianLink{
		ParentID:     ng.ParentID,
		ChildID:      ng.ChildID,
		Relationship: ng.Relationship,
		IsPrimary:    ng.IsPrimary,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateGuardianLink(ctx, gl)
}

func (svc *service) IsGuardian(ctx context.Context, parentID, childID string) (bool, error) {
	return svc.repo.IsGuardian(ctx, parentID, childID)
}

func (svc *service) AddAuthorizedPerson(ctx context.Context, na NewAuthorizedPerson) (AuthorizedPerson, error) {
	if _, err := svc.repo.GetChildByID(ctx, na.ChildID); err != nil {
		return AuthorizedPerson{}, err
	}
	ap := AuthorizedPerson{
		ChildID:      na.ChildID,
		Name:         na.Name,
		Relationship: na.Relationship,
		Phone:        na.Phone,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateAuthorizedPerson(ctx, ap)
}

func (svc *service) AuthorizedPersons(ctx context.Context, childID string) ([]AuthorizedPerson, error) {
	return svc.repo.QueryAuthorizedPersons(ctx, childID)
}

func (svc *service) GetAuthorizedPerson(ctx context.Context, id string) (AuthorizedPerson, error) {
	return svc.repo.GetAuthorizedPerson(ctx, id)
}

func (svc *service) PickupOptions(ctx context.Context, parent user.User, childID string) ([]PickupOption, error) {
	if !parent.IsParent() {
		return nil, ErrNotParent
	}
	persons, err := svc.repo.QueryAuthorizedPersons(ctx, childID)
	if err != nil {
		return nil, err
	}

	name := parent.Name
	if name == "" {
		name = "Meg selv"
	}
	options := make([]PickupOption, 0, len(persons)+1)
	options = append(options, PickupOption{ID: SelfPickupID, Name: name, Relationship: "Forelder"})
	for _, p := range persons {
		options = append(options, PickupOption{ID: p.ID, Name: p.Name, Relationship: p.Relationship})
	}
	return options, nil
}
