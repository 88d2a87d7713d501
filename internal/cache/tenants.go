package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

// TenantCache fronts the tenant registry with Redis. Only GetByCode is
// cached; it sits on the hot path of every tenant-scoped request, resolving
// code to schema. Cache failures degrade to the database, never to an
// error.
type TenantCache struct {
	inner  repository.TenantRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewTenantCache(inner repository.TenantRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *TenantCache {
	return &TenantCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func codeKey(code string) string { return "tenant:code:" + code }
func idKey(id int64) string      { return fmt.Sprintf("tenant:id:%d", id) }

func (c *TenantCache) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	if cached, err := c.client.Get(ctx, codeKey(code)).Bytes(); err == nil {
		var t models.Tenant
		if err := json.Unmarshal(cached, &t); err == nil {
			return &t, nil
		}
		// Unreadable entry: drop it and fall through to the database.
		c.client.Del(ctx, codeKey(code))
	} else if err != redis.Nil {
		c.logger.Warn("tenant cache read failed", zap.String("code", code), zap.Error(err))
	}

	t, err := c.inner.GetByCode(ctx, code)
	if err != nil || t == nil {
		return t, err
	}
	c.store(ctx, t)
	return t, nil
}

func (c *TenantCache) store(ctx context.Context, t *models.Tenant) {
	encoded, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, codeKey(t.Code), encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("tenant cache write failed", zap.String("code", t.Code), zap.Error(err))
		return
	}
	// The id to code mapping lets Update and Deactivate, which address
	// tenants by id, find the entry to invalidate.
	c.client.Set(ctx, idKey(t.ID), t.Code, c.ttl)
}

func (c *TenantCache) invalidate(ctx context.Context, id int64) {
	code, err := c.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("tenant cache invalidate lookup failed", zap.Int64("id", id), zap.Error(err))
		}
		return
	}
	c.client.Del(ctx, codeKey(code), idKey(id))
}

func (c *TenantCache) GetBySchema(ctx context.Context, schema string) (*models.Tenant, error) {
	return c.inner.GetBySchema(ctx, schema)
}

func (c *TenantCache) ListActive(ctx context.Context) ([]models.Tenant, error) {
	return c.inner.ListActive(ctx)
}

func (c *TenantCache) List(ctx context.Context, page, limit int) ([]models.Tenant, int, error) {
	return c.inner.List(ctx, page, limit)
}

func (c *TenantCache) Update(ctx context.Context, id int64, upd repository.TenantUpdate) (*models.Tenant, error) {
	t, err := c.inner.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return t, nil
}

func (c *TenantCache) Deactivate(ctx context.Context, id int64) error {
	if err := c.inner.Deactivate(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *TenantCache) CheckLimits(ctx context.Context, schema string) (*models.TenantLimits, error) {
	return c.inner.CheckLimits(ctx, schema)
}

var _ repository.TenantRepository = (*TenantCache)(nil)
