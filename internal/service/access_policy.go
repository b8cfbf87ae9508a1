package service

import (
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/util"
)

// Actor 当前调用者身份
type Actor struct {
	UserID    uint
	CompanyID uint
	Role      model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// ActorFromClaims 由 JWT claims 构造调用者身份
func ActorFromClaims(claims *util.Claims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, CompanyID: claims.CompanyID, Role: claims.Role}
}

// Rule 一次授权检查的参数。零值字段表示不检查该项。
type Rule struct {
	// 资源所属公司
	CompanyID uint
	// 资源所属用户，非管理员只能访问自己的记录
	OwnerID uint
	// 要求的角色
	Role model.UserRole
	// 管理员是否可以越过 OwnerID 检查
	AdminOverride bool
	// 满足时可替代角色要求，例如学员已选修该课程
	Grant bool
}

// AccessPolicy 所有学习相关操作共用的角色与租户检查
type AccessPolicy struct{}

func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

func (p *AccessPolicy) Authorize(actor Actor, rule Rule) error {
	if actor.UserID == 0 {
		return util.ErrUnauthenticated
	}
	if rule.CompanyID != 0 && actor.CompanyID != rule.CompanyID {
		return util.ErrForbidden
	}
	if rule.Role != "" && actor.Role != rule.Role && !rule.Grant {
		return util.ErrForbidden
	}
	if rule.OwnerID != 0 && actor.UserID != rule.OwnerID {
		if !(rule.AdminOverride && actor.IsAdmin()) {
			return util.ErrForbidden
		}
	}
	return nil
}

// CanAuthor 仅本公司管理员可编辑课程目录
func (p *AccessPolicy) CanAuthor(actor Actor, companyID uint) error {
	return p.Authorize(actor, Rule{CompanyID: companyID, Role: model.RoleAdmin})
}

// CanReadContent 课程内容仅对本公司管理员或已选课学员开放
func (p *AccessPolicy) CanReadContent(actor Actor, course *model.Course, enrolled bool) error {
	return p.Authorize(actor, Rule{CompanyID: course.CompanyID, Role: model.RoleAdmin, Grant: enrolled})
}

// CanViewListing 已发布课程对本公司所有用户可见，未发布课程仅管理员可见
func (p *AccessPolicy) CanViewListing(actor Actor, course *model.Course) error {
	return p.Authorize(actor, Rule{CompanyID: course.CompanyID, Role: model.RoleAdmin, Grant: course.Published})
}

// CanMutateOwn 只能修改自己的选课、答题记录
func (p *AccessPolicy) CanMutateOwn(actor Actor, ownerID, companyID uint) error {
	return p.Authorize(actor, Rule{CompanyID: companyID, OwnerID: ownerID})
}

// CanReadOwn 本人或本公司管理员可查看
func (p *AccessPolicy) CanReadOwn(actor Actor, ownerID, companyID uint) error {
	return p.Authorize(actor, Rule{CompanyID: companyID, OwnerID: ownerID, AdminOverride: true})
}
