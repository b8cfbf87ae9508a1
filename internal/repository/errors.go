package repository

import (
	"appcc_edu_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notFound 将 gorm 的记录不存在错误转换为 util.ErrNotFound
func notFound(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", entity, id, util.ErrNotFound)
	}
	return err
}

// IsDuplicate 判断是否违反唯一约束，需要 gorm.Config.TranslateError
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// forUpdate 行锁，SQLite 下会被忽略
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
