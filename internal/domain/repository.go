package domain

import (
	"regexp"
	"time"
)

// Repository 本地仓库元数据，镜像上游 Registry 中的同名仓库
type Repository struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsPublic    bool      `gorm:"not null;default:false" json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Repository) TableName() string { return "repositories" }

// Registry v2 的仓库命名规则（distribution/reference）
var repoNameRe = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)

func ValidRepositoryName(name string) bool {
	return len(name) > 0 && len(name) <= 255 && repoNameRe.MatchString(name)
}

type RepositoryRepository interface {
	Create(r *Repository) error
	FindByID(id uint) (*Repository, error)
	FindByName(name string) (*Repository, error)
	List() ([]Repository, error)
	ListPublic() ([]Repository, error)
	Update(r *Repository) error
	// DeleteCascade 删除仓库及其全部权限行，同一事务内完成
	DeleteCascade(id uint) error
}
