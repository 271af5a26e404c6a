// Package storetest provides an in-memory user repository for tests. It
// enforces the same uniqueness rules as the users table.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/internal/store"
	"github.com/Gerardinho-server/GestionUsuarios/types"
)

// Users is a fake user repository.
type Users struct {
	mu     sync.Mutex
	rows   map[int64]types.User
	nextID int64
	clock  time.Time

	// Err, when set, is returned by every method.
	Err error
	// SkipExistsCheck makes ExistsUsernameOrEmail report false, simulating
	// a concurrent insert that slips past the pre-check.
	SkipExistsCheck bool
	// Calls counts invocations per method name.
	Calls map[string]int
}

func NewUsers() *Users {
	return &Users{
		rows:  make(map[int64]types.User),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Calls: make(map[string]int),
	}
}

// Seed inserts user directly and returns it with its id.
func (u *Users) Seed(user types.User) types.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.insert(user)
}

// Count returns the number of stored rows.
func (u *Users) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

func (u *Users) insert(user types.User) types.User {
	u.nextID++
	u.clock = u.clock.Add(time.Minute)
	user.ID = u.nextID
	user.CreatedAt = u.clock
	u.rows[user.ID] = user
	return user
}

func (u *Users) begin(method string) error {
	u.Calls[method]++
	return u.Err
}

func (u *Users) taken(username, email string, excludeID int64) bool {
	for id, row := range u.rows {
		if id == excludeID {
			continue
		}
		if row.Username == username || row.Email == email {
			return true
		}
	}
	return false
}

func (u *Users) GetByID(_ context.Context, id int64) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("GetByID"); err != nil {
		return types.User{}, err
	}
	row, ok := u.rows[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return row, nil
}

func (u *Users) GetByLogin(_ context.Context, identifier string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("GetByLogin"); err != nil {
		return types.User{}, err
	}
	var byEmail *types.User
	for _, row := range u.rows {
		if row.Username == identifier {
			return row, nil
		}
		if row.Email == identifier {
			found := row
			byEmail = &found
		}
	}
	if byEmail != nil {
		return *byEmail, nil
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) ExistsUsernameOrEmail(_ context.Context, username, email string, excludeID int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("ExistsUsernameOrEmail"); err != nil {
		return false, err
	}
	if u.SkipExistsCheck {
		return false, nil
	}
	return u.taken(username, email, excludeID), nil
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("Create"); err != nil {
		return types.User{}, err
	}
	if u.taken(user.Username, user.Email, 0) {
		return types.User{}, store.ErrConflict
	}
	return u.insert(user), nil
}

func (u *Users) Update(_ context.Context, user types.User, withPassword bool) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("Update"); err != nil {
		return types.User{}, err
	}
	row, ok := u.rows[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if u.taken(user.Username, user.Email, user.ID) {
		return types.User{}, store.ErrConflict
	}
	row.Username = user.Username
	row.Email = user.Email
	row.Role = user.Role
	row.IsActive = user.IsActive
	if withPassword {
		row.PasswordHash = user.PasswordHash
	}
	u.rows[row.ID] = row
	return user, nil
}

func (u *Users) UpdateProfile(_ context.Context, id int64, username, email, passwordHash string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("UpdateProfile"); err != nil {
		return types.User{}, err
	}
	row, ok := u.rows[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if u.taken(username, email, id) {
		return types.User{}, store.ErrConflict
	}
	row.Username = username
	row.Email = email
	if passwordHash != "" {
		row.PasswordHash = passwordHash
	}
	u.rows[id] = row
	return row, nil
}

func (u *Users) List(_ context.Context) ([]types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("List"); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(u.rows))
	for _, row := range u.rows {
		row.PasswordHash = ""
		users = append(users, row)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (u *Users) Delete(_ context.Context, id int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.begin("Delete"); err != nil {
		return err
	}
	if _, ok := u.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(u.rows, id)
	return nil
}
