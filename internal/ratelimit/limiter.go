// Package ratelimit is a fixed-window request limiter whose counters live in
// the database, so limits hold across restarts and instances.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go-hospitality/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Limiter allows Limit requests per key in each Window.
type Limiter struct {
	db     *gorm.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(db *gorm.DB, limit int, window time.Duration) *Limiter {
	return &Limiter{db: db, limit: limit, window: window, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the limiter's time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Decision is the limiter's answer for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow counts one request against key.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	var d Decision
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.RateLimitCounter{Key: key, WindowStart: now, Count: 0}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var c models.RateLimitCounter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(&models.RateLimitCounter{Key: key}).First(&c).Error; err != nil {
			return err
		}

		if !now.Before(c.WindowStart.Add(l.window)) {
			c.WindowStart = now
			c.Count = 0
		}
		d.ResetAt = c.WindowStart.Add(l.window)
		if c.Count >= l.limit {
			return nil
		}

		c.Count++
		d.Allowed = true
		d.Remaining = l.limit - c.Count
		return tx.Model(&c).Select("WindowStart", "Count").Updates(&c).Error
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return d, nil
}

// Middleware limits a route group per client IP. Counter errors are logged
// and the request is let through.
func (l *Limiter) Middleware(scope string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":" + c.ClientIP()
		d, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(d.ResetAt.Sub(l.now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			log.Warn("rate limit exceeded", zap.String("key", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
