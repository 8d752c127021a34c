package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// query returns the users sorted by id. The lock must be held.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) checkUniqueness(username, email string) error {
	for _, usr := range repo.db.users {
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, exec ...core.DBExecutor) error {
	return repo.db.read(exec, func() error {
		return repo.checkUniqueness(username, email)
	})
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.db.write(exec, func() error {
		if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
			return err
		}
		usr.ID = repo.db.nextPK("user")
		repo.db.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int, exec ...core.DBExecutor) (usr user.User, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if usr, ok = repo.db.users[id]; !ok {
			return user.ErrNotFound
		}
		return nil
	})
	return usr, err
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string, exec ...core.DBExecutor) (usr user.User, err error) {
	err = repo.db.read(exec, func() error {
		for _, u := range repo.db.users {
			if u.Username == username {
				usr = u
				return nil
			}
		}
		return user.ErrNotFound
	})
	return usr, err
}

func matchesFilter(usr user.User, filter user.QueryFilter) bool {
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.HasEmail && usr.Email == "" {
		return false
	}
	if !filter.JoinedBefore.IsZero() && usr.CreatedAt.After(filter.JoinedBefore) {
		return false
	}
	return true
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.read(exec, func() error {
		for _, usr := range repo.query() {
			if matchesFilter(usr, filter) {
				users = append(users, usr)
			}
		}
		return nil
	})
	return users, err
}
