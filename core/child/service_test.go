package child_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/user"
	inmemdb "github.com/krysselista/backend/storage/database/inmem"
)

func setup(t *testing.T) (child.Service, user.Repository) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return child.NewService(inmemdb.NewChildRepository(db)), inmemdb.NewUserRepository(db)
}

func createParent(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()
	usr := user.User{Name: name, Email: email, Roles: []string{user.RoleParent}, CreatedAt: time.Now().UTC()}
	usr.SetActive(true)
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func TestService_QueryAttachesGuardians(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()
	parent := createParent(t, usrRepo, "Kari Hansen", "kari@test.no")

	emma, err := svc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)
	_, err = svc.AddGuardian(ctx, child.NewGuardianLink{ParentID: parent.ID, ChildID: emma.ID})
	require.NoError(t, err)

	children, err := svc.Query(ctx)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Len(t, children[0].Guardians, 1)
	assert.Equal(t, parent.ID, children[0].Guardians[0].ParentID)
	assert.Equal(t, "Kari Hansen", children[0].Guardians[0].ParentName)
	// relationship defaults at validation time, not storage time
	assert.Equal(t, "", children[0].Guardians[0].Relationship)
}

func TestService_AddGuardian_UnknownChild(t *testing.T) {
	svc, usrRepo := setup(t)
	parent := createParent(t, usrRepo, "Kari Hansen", "kari@test.no")

	_, err := svc.AddGuardian(context.Background(), child.NewGuardianLink{ParentID: parent.ID, ChildID: "nope"})
	assert.Equal(t, child.ErrNotFound, err)
}

func TestService_QueryByGuardian(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()
	kari := createParent(t, usrRepo, "Kari Hansen", "kari@test.no")
	marius := createParent(t, usrRepo, "Marius Olsen", "marius@test.no")

	emma, err := svc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)
	lucas, err := svc.Create(ctx, child.NewChild{Name: "Lucas Olsen"})
	require.NoError(t, err)
	_, err = svc.AddGuardian(ctx, child.NewGuardianLink{ParentID: kari.ID, ChildID: emma.ID})
	require.NoError(t, err)
	_, err = svc.AddGuardian(ctx, child.NewGuardianLink{ParentID: marius.ID, ChildID: lucas.ID})
	require.NoError(t, err)

	children, err := svc.QueryByGuardian(ctx, kari.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, emma.ID, children[0].ID)
}

func TestService_PickupOptions(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()
	parent := createParent(t, usrRepo, "Kari Hansen", "kari@test.no")

	emma, err := svc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)
	_, err = svc.AddAuthorizedPerson(ctx, child.NewAuthorizedPerson{ChildID: emma.ID, Name: "Mormor Anne", Relationship: "Besteforelder", Phone: "987 65 432"})
	require.NoError(t, err)
	_, err = svc.AddAuthorizedPerson(ctx, child.NewAuthorizedPerson{ChildID: emma.ID, Name: "Tante Lisa", Relationship: "Tante", Phone: "456 78 901"})
	require.NoError(t, err)

	options, err := svc.PickupOptions(ctx, parent, emma.ID)
	require.NoError(t, err)
	require.Len(t, options, 3)

	// the parent comes first
	assert.Equal(t, child.SelfPickupID, options[0].ID)
	assert.Equal(t, "Kari Hansen", options[0].Name)
	assert.Equal(t, "Forelder", options[0].Relationship)
	assert.Equal(t, "Mormor Anne", options[1].Name)
	assert.Equal(t, "Tante Lisa", options[2].Name)
}

func TestService_PickupOptions_FallbackName(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()
	parent := createParent(t, usrRepo, "", "anon@test.no")

	emma, err := svc.Create(ctx, child.NewChild{Name: "Emma Hansen"})
	require.NoError(t, err)

	options, err := svc.PickupOptions(ctx, parent, emma.ID)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "Meg selv", options[0].Name)
}

func TestService_PickupOptions_RequiresParent(t *testing.T) {
	svc, _ := setup(t)
	employee := user.User{ID: "e1", Name: "Per Ansatt", Roles: []string{user.RoleEmployee}}

	_, err := svc.PickupOptions(context.Background(), employee, "whatever")
	assert.Equal(t, child.ErrNotParent, err)
}
