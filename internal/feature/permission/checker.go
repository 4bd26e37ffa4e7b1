// Package permission 实现仓库访问判定：
// 管理员全通过；公开仓库只隐含 pull；push/delete 必须有显式授权行。
package permission

import (
	"sort"

	"registry-console/internal/domain"
)

type Operation string

const (
	OpPull   Operation = "pull"
	OpPush   Operation = "push"
	OpDelete Operation = "delete"
)

type Checker struct {
	perms domain.PermissionRepository
	repos domain.RepositoryRepository
}

func NewChecker(perms domain.PermissionRepository, repos domain.RepositoryRepository) *Checker {
	return &Checker{perms: perms, repos: repos}
}

// Can 纯读判定，不写任何状态。没有权限行等价于三个标记全 false。
func (c *Checker) Can(u *domain.User, rep *domain.Repository, op Operation) (bool, error) {
	if u != nil && u.IsAdmin {
		return true, nil
	}
	// 公开仓库只隐含 pull，push/delete 不随可见性放开
	if rep.IsPublic && op == OpPull {
		return true, nil
	}
	if u == nil {
		return false, nil
	}
	p, err := c.perms.FindByUserAndRepo(u.ID, rep.ID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	switch op {
	case OpPull:
		return p.CanPull, nil
	case OpPush:
		return p.CanPush, nil
	case OpDelete:
		return p.CanDelete, nil
	}
	return false, nil
}

// AccessibleRepositories 用户可见的仓库：管理员全量，其余为公开 + 显式授权，去重
func (c *Checker) AccessibleRepositories(u *domain.User) ([]domain.Repository, error) {
	if u.IsAdmin {
		return c.repos.List()
	}

	public, err := c.repos.ListPublic()
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]struct{}, len(public))
	out := make([]domain.Repository, 0, len(public))
	for _, rep := range public {
		seen[rep.ID] = struct{}{}
		out = append(out, rep)
	}

	grants, err := c.perms.ListByUser(u.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if _, ok := seen[g.RepositoryID]; ok {
			continue
		}
		rep, err := c.repos.FindByID(g.RepositoryID)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			continue
		}
		seen[rep.ID] = struct{}{}
		out = append(out, *rep)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
