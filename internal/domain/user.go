package domain

import "time"

// User 本地账户：登录身份 + 管理员标记
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	Email        string    `gorm:"size:255" json:"email"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

type UserRepository interface {
	Create(u *User) error
	FindByID(id uint) (*User, error)
	FindByUsername(username string) (*User, error)
	List() ([]User, error)
	Update(u *User) error
	// CountActiveAdmins 不含 id=exclude 的启用管理员数量（exclude=0 统计全部）
	CountActiveAdmins(exclude uint) (int64, error)
	// DeleteCascade 删除用户及其全部权限行，同一事务内完成
	DeleteCascade(id uint) error
}
