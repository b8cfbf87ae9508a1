package model

// Company 租户
type Company struct {
	BaseModel
	Name string `gorm:"size:150;not null" json:"name"`
}

func (Company) TableName() string {
	return "companies"
}
