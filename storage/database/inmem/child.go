package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
)

type childRepository struct {
	db *DB
}

var _ child.Repository = (*childRepository)(nil)

func NewChildRepository(db *DB) child.Repository {
	return &childRepository{db: db}
}

func (repo *childRepository) CreateChild(ctx context.Context, c child.Child, exec ...core.DBExecutor) (child.Child, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = uuid.New().String()
	repo.db.children[c.ID] = &c
	return c, nil
}

func (repo *childRepository) QueryChildren(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]child.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	children := make([]child.Child, 0, len(repo.db.children))
	for _, c := range repo.db.children {
		children = append(children, *c)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (repo *childRepository) GetChildByID(ctx context.Context, id string, exec ...core.DBExecutor) (child.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.children[id]; ok {
		return *c, nil
	}
	return child.Child{}, child.ErrNotFound
}

func (repo *childRepository) QueryChildrenByGuardian(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]child.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var children []child.Child
	for _, gl := range repo.db.guardianLinks {
		if gl.ParentID != parentID {
			continue
		}
		if c, ok := repo.db.children[gl.ChildID]; ok {
			children = append(children, *c)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (repo *childRepository) CreateGuardianLink(ctx context.Context, gl child.GuardianLink, exec ...core.DBExecutor) (child.GuardianLink, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	gl.ID = uuid.New().String()
	repo.db.guardianLinks[gl.ID] = &gl
	return gl, nil
}

func (repo *childRepository) QueryGuardianLinks(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.GuardianLink, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var links []child.GuardianLink
	for _, gl := range repo.db.guardianLinks {
		if gl.ChildID != childID {
			continue
		}
		link := *gl
		if parent, ok := repo.db.users[gl.ParentID]; ok {
			link.ParentName = parent.Name
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].IsPrimary != links[j].IsPrimary {
			return links[i].IsPrimary
		}
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})
	return links, nil
}

func (repo *childRepository) IsGuardian(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, gl := range repo.db.guardianLinks {
		if gl.ParentID == parentID && gl.ChildID == childID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *childRepository) CreateAuthorizedPerson(ctx context.Context, ap child.AuthorizedPerson, exec ...core.DBExecutor) (child.AuthorizedPerson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ap.ID = uuid.New().String()
	repo.db.authorizedPersons[ap.ID] = &ap
	return ap, nil
}

func (repo *childRepository) QueryAuthorizedPersons(ctx context.Context, childID string, exec ...core.DBExecutor) ([]child.AuthorizedPerson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var persons []child.AuthorizedPerson
	for _, ap := range repo.db.authorizedPersons {
		if ap.ChildID == childID {
			persons = append(persons, *ap)
		}
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].Name < persons[j].Name })
	return persons, nil
}

func (repo *childRepository) GetAuthorizedPerson(ctx context.Context, id string, exec ...core.DBExecutor) (child.AuthorizedPerson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ap, ok := repo.db.authorizedPersons[id]; ok {
		return *ap, nil
	}
	return child.AuthorizedPerson{}, child.ErrPersonNotFound
}
