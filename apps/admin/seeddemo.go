package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/user"
)

const demoPassword = "passord123"

type demoChild struct {
	name       string
	birthDate  time.Time
	parentName string
	parentMail string
	persons    []child.AuthorizedPerson
}

// seedDemo loads the demo dataset: three children with their guardians and
// pre-authorized pickup persons, plus an employee and an admin account.
func (cli *commandLine) seedDemo() error {
	ctx := context.Background()

	// bail out if the demo data is already loaded
	if _, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: "kari.hansen@demo.no"}); err == nil {
		logger.Print("demo data already loaded; nothing to do")
		return nil
	} else if err != user.ErrNotFound {
		return err
	}

	staff := []user.User{
		{Name: "Per Ansatt", Email: "per.ansatt@demo.no", Roles: []string{user.RoleEmployee}},
		{Name: "Anne Admin", Email: "anne.admin@demo.no", Roles: user.AllRoles},
	}
	for _, usr := range staff {
		if err := cli.seedUser(ctx, usr); err != nil {
			return err
		}
	}

	children := []demoChild{
		{
			name:       "Emma Hansen",
			birthDate:  time.Date(2021, time.March, 14, 0, 0, 0, 0, time.UTC),
			parentName: "Kari Hansen",
			parentMail: "kari.hansen@demo.no",
			persons: []child.AuthorizedPerson{
				{Name: "Mormor Anne", Relationship: "Besteforelder", Phone: "987 65 432"},
				{Name: "Tante Lisa", Relationship: "Tante", Phone: "456 78 901"},
			},
		},
		{
			name:       "Lucas Olsen",
			birthDate:  time.Date(2020, time.August, 2, 0, 0, 0, 0, time.UTC),
			parentName: "Marius Olsen",
			parentMail: "marius.olsen@demo.no",
		},
		{
			name:       "Sofia Berg",
			birthDate:  time.Date(2022, time.January, 27, 0, 0, 0, 0, time.UTC),
			parentName: "Silje Berg",
			parentMail: "silje.berg@demo.no",
		},
	}

	for _, dc := range children {
		if err := cli.seedChild(ctx, dc); err != nil {
			return err
		}
	}

	logger.Print("demo data loaded")
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, usr user.User) error {
	now := time.Now().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now
	usr.SetActive(true)
	if err := usr.SetPassword(demoPassword); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return errors.Wrapf(err, "seeding user %s", usr.Email)
	}
	return nil
}

func (cli *commandLine) seedChild(ctx context.Context, dc demoChild) error {
	now := time.Now().UTC()

	parent := user.User{
		Name:  dc.parentName,
		Email: dc.parentMail,
		Roles: []string{user.RoleParent},
	}
	if err := cli.seedUser(ctx, parent); err != nil {
		return err
	}
	parent, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: dc.parentMail})
	if err != nil {
		return errors.Wrapf(err, "fetching seeded parent %s", dc.parentMail)
	}

	c, err := cli.childRepo.CreateChild(ctx, child.Child{
		Name:      dc.name,
		BirthDate: null.TimeFrom(dc.birthDate),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return errors.Wrapf(err, "seeding child %s", dc.name)
	}

	_, err = cli.childRepo.CreateGuardianLink(ctx, child.GuardianLink{
		ParentID:     parent.ID,
		ChildID:      c.ID,
		Relationship: "Forelder",
		IsPrimary:    true,
		CreatedAt:    now,
	})
	if err != nil {
		return errors.Wrapf(err, "seeding guardian link for %s", dc.name)
	}

	for _, ap := range dc.persons {
		ap.ChildID = c.ID
		ap.CreatedAt = now
		if _, err := cli.childRepo.CreateAuthorizedPerson(ctx, ap); err != nil {
			return errors.Wrapf(err, "seeding authorized person %s", ap.Name)
		}
	}
	return nil
}
