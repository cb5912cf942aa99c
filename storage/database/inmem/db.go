// Package inmemdb provides mutex-guarded in-memory repositories for tests.
package inmemdb

import (
	"sync"

	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users             map[string]*user.User
	children          map[string]*child.Child
	guardianLinks     map[string]*child.GuardianLink
	authorizedPersons map[string]*child.AuthorizedPerson
	requests          map[string]*pickup.Request
}

func Open() (*DB, error) {
	return &DB{
		users:             make(map[string]*user.User),
		children:          make(map[string]*child.Child),
		guardianLinks:     make(map[string]*child.GuardianLink),
		authorizedPersons: make(map[string]*child.AuthorizedPerson),
		requests:          make(map[string]*pickup.Request),
	}, nil
}
