package router

import (
	"sort"

	"registry-console/internal/domain"
)

// 内存版三张表，实现 domain 的仓库接口，给路由测试用

type fakeStore struct {
	seq   uint
	users map[uint]domain.User
	repos map[uint]domain.Repository
	perms map[uint]domain.Permission
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[uint]domain.User{},
		repos: map[uint]domain.Repository{},
		perms: map[uint]domain.Permission{},
	}
}

func (s *fakeStore) nextID() uint { s.seq++; return s.seq }

type fakeUsers struct{ s *fakeStore }

func (f *fakeUsers) Create(u *domain.User) error {
	u.ID = f.s.nextID()
	f.s.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) FindByID(id uint) (*domain.User, error) {
	if u, ok := f.s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUsers) FindByUsername(username string) (*domain.User, error) {
	for _, u := range f.s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) List() ([]domain.User, error) {
	out := make([]domain.User, 0, len(f.s.users))
	for _, u := range f.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Update(u *domain.User) error {
	f.s.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) CountActiveAdmins(exclude uint) (int64, error) {
	var n int64
	for _, u := range f.s.users {
		if u.IsAdmin && u.IsActive && u.ID != exclude {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) DeleteCascade(id uint) error {
	delete(f.s.users, id)
	for pid, p := range f.s.perms {
		if p.UserID == id {
			delete(f.s.perms, pid)
		}
	}
	return nil
}

type fakeRepos struct{ s *fakeStore }

func (f *fakeRepos) Create(r *domain.Repository) error {
	r.ID = f.s.nextID()
	f.s.repos[r.ID] = *r
	return nil
}

func (f *fakeRepos) FindByID(id uint) (*domain.Repository, error) {
	if r, ok := f.s.repos[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeRepos) FindByName(name string) (*domain.Repository, error) {
	for _, r := range f.s.repos {
		if r.Name == name {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepos) List() ([]domain.Repository, error) {
	out := make([]domain.Repository, 0, len(f.s.repos))
	for _, r := range f.s.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepos) ListPublic() ([]domain.Repository, error) {
	var out []domain.Repository
	for _, r := range f.s.repos {
		if r.IsPublic {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepos) Update(r *domain.Repository) error {
	f.s.repos[r.ID] = *r
	return nil
}

func (f *fakeRepos) DeleteCascade(id uint) error {
	delete(f.s.repos, id)
	for pid, p := range f.s.perms {
		if p.RepositoryID == id {
			delete(f.s.perms, pid)
		}
	}
	return nil
}

type fakePerms struct{ s *fakeStore }

func (f *fakePerms) Create(p *domain.Permission) error {
	p.ID = f.s.nextID()
	f.s.perms[p.ID] = *p
	return nil
}

func (f *fakePerms) FindByID(id uint) (*domain.Permission, error) {
	if p, ok := f.s.perms[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakePerms) FindByUserAndRepo(userID, repoID uint) (*domain.Permission, error) {
	for _, p := range f.s.perms {
		if p.UserID == userID && p.RepositoryID == repoID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePerms) List() ([]domain.Permission, error) {
	out := make([]domain.Permission, 0, len(f.s.perms))
	for _, p := range f.s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePerms) ListByRepository(repoID uint) ([]domain.Permission, error) {
	var out []domain.Permission
	for _, p := range f.s.perms {
		if p.RepositoryID == repoID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePerms) ListByUser(userID uint) ([]domain.Permission, error) {
	var out []domain.Permission
	for _, p := range f.s.perms {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePerms) Update(p *domain.Permission) error {
	f.s.perms[p.ID] = *p
	return nil
}

func (f *fakePerms) Delete(id uint) error {
	delete(f.s.perms, id)
	return nil
}
