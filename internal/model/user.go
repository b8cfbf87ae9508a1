package model

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleLearner UserRole = "learner"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleLearner
}

// swagger:model User
type User struct {
	BaseModel
	CompanyID uint     `gorm:"index;not null" json:"companyId"`
	Name      string   `gorm:"size:100;not null" json:"name"`
	Email     string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string   `gorm:"size:100;not null" json:"-"`
	Role      UserRole `gorm:"size:20;not null" json:"role"`
	Disabled  bool     `json:"disabled"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
