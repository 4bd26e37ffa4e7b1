package domain

import "time"

// Permission (user, repository) 上的 pull/push/delete 授权，唯一成对
type Permission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_perm_user_repo" json:"user_id"`
	RepositoryID uint      `gorm:"not null;uniqueIndex:idx_perm_user_repo" json:"repository_id"`
	CanPull      bool      `gorm:"not null;default:true" json:"can_pull"`
	CanPush      bool      `gorm:"not null;default:false" json:"can_push"`
	CanDelete    bool      `gorm:"not null;default:false" json:"can_delete"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Permission) TableName() string { return "permissions" }

type PermissionRepository interface {
	Create(p *Permission) error
	FindByID(id uint) (*Permission, error)
	FindByUserAndRepo(userID, repoID uint) (*Permission, error)
	List() ([]Permission, error)
	ListByRepository(repoID uint) ([]Permission, error)
	ListByUser(userID uint) ([]Permission, error)
	Update(p *Permission) error
	Delete(id uint) error
}
