package service

import (
	"appcc_edu_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const courseOutlineKeyPrefix = "course_outline:"

// CourseOutline 课程结构：按顺序排列的课时 ID 与测验 ID
type CourseOutline struct {
	LessonIDs []uint `json:"lessonIds"`
	QuizIDs   []uint `json:"quizIds"`
}

// OutlineCache 基于 Redis 的课程结构缓存。Redis 为空时所有操作均为空操作。
type OutlineCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewOutlineCache(rdb *redis.Client, ttl time.Duration) *OutlineCache {
	return &OutlineCache{Redis: rdb, TTL: ttl}
}

func outlineKey(courseID uint) string {
	return fmt.Sprintf("%s%d", courseOutlineKeyPrefix, courseID)
}

func (c *OutlineCache) enabled() bool {
	return c != nil && c.Redis != nil
}

func (c *OutlineCache) Get(ctx context.Context, courseID uint) (*CourseOutline, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.Redis.Get(ctx, outlineKey(courseID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("outline cache read failed", zap.Uint("course_id", courseID), zap.Error(err))
		}
		return nil, false
	}
	var outline CourseOutline
	if err := json.Unmarshal(raw, &outline); err != nil {
		return nil, false
	}
	return &outline, true
}

func (c *OutlineCache) Set(ctx context.Context, courseID uint, outline *CourseOutline) {
	if !c.enabled() || outline == nil {
		return
	}
	raw, err := json.Marshal(outline)
	if err != nil {
		return
	}
	if err := c.Redis.Set(ctx, outlineKey(courseID), raw, c.TTL).Err(); err != nil {
		logger.Log.Warn("outline cache write failed", zap.Uint("course_id", courseID), zap.Error(err))
	}
}

// Invalidate 课程结构变更（课时、测验增删改）后调用
func (c *OutlineCache) Invalidate(ctx context.Context, courseID uint) {
	if !c.enabled() {
		return
	}
	if err := c.Redis.Del(ctx, outlineKey(courseID)).Err(); err != nil {
		logger.Log.Warn("outline cache invalidation failed", zap.Uint("course_id", courseID), zap.Error(err))
	}
}
