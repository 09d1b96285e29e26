package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		users = append(users, u)
	}
	return users
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) checkUniqueness(username, email string, excludedUsers ...user.User) error {
	for _, usr := range repo.query() {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fail("CreateUser"); err != nil {
		return user.User{}, err
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.t.users))
	for _, usr := range repo.query() {
		if filter != nil {
			if !matches(filter.Search, usr.Name, usr.Username, usr.Email) {
				continue
			}
			if len(filter.Roles) > 0 && !stringIn(usr.Role, filter.Roles) {
				continue
			}
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
			if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
				continue
			}
			if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
				continue
			}
		}
		users = append(users, usr)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	sort.SliceStable(users, lessFor(ordering, core.DBOrdering{Field: "created_at"}, map[string]comparator{
		"name":       func(i, j int) int { return cmpString(users[i].Name, users[j].Name) },
		"username":   func(i, j int) int { return cmpString(users[i].Username, users[j].Username) },
		"email":      func(i, j int) int { return cmpString(users[i].Email, users[j].Email) },
		"role":       func(i, j int) int { return cmpString(users[i].Role, users[j].Role) },
		"created_at": func(i, j int) int { return cmpTime(users[i].CreatedAt, users[j].CreatedAt) },
		"last_login": func(i, j int) int { return cmpTime(users[i].LastLogin, users[j].LastLogin) },
	}))
	return users, nil
}

func stringIn(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.query() {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.t.users[id]; ok {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

// DeleteUsersByID unlinks the owners of the deleted users and drops their notifications.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.users[id]; !ok {
			continue
		}
		delete(repo.db.t.users, id)
		n++

		for sid, st := range repo.db.t.students {
			if st.UserID == id {
				st.UserID = ""
				repo.db.t.students[sid] = st
			}
		}
		for tid, t := range repo.db.t.teachers {
			if t.UserID == id {
				t.UserID = ""
				repo.db.t.teachers[tid] = t
			}
		}
		for nid, note := range repo.db.t.notifications {
			if note.UserID == id {
				delete(repo.db.t.notifications, nid)
			}
		}
	}
	return n, nil
}
