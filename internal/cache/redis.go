package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	packagesKey       = "packages:all"
	packageKeyPrefix  = "packages:"
	defaultPackageTTL = 5 * time.Minute
)

type ConnectArgs struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// PackageCache кеш каталога пакетов в redis. Значения хранятся в JSON, отсутствие ключа - domain.ErrCacheMiss.
type PackageCache struct {
	db  *redis.Client
	ttl time.Duration
}

// Connect подключается к redis и проверяет соединение.
func Connect(ctx context.Context, args ConnectArgs) (*PackageCache, error) {
	db := redis.NewClient(&redis.Options{
		Addr:     args.Addr,
		Password: args.Password,
		DB:       args.DB,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewPackageCache(db, args.TTL), nil
}

func NewPackageCache(db *redis.Client, ttl time.Duration) *PackageCache {
	if ttl <= 0 {
		ttl = defaultPackageTTL
	}
	return &PackageCache{db: db, ttl: ttl}
}

func (c *PackageCache) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	var pkg domain.Package
	if err := c.get(ctx, packageKey(id), &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (c *PackageCache) SetPackage(ctx context.Context, pkg *domain.Package) error {
	return c.set(ctx, packageKey(pkg.ID), pkg)
}

func (c *PackageCache) GetPackages(ctx context.Context) ([]domain.Package, error) {
	var packages []domain.Package
	if err := c.get(ctx, packagesKey, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

func (c *PackageCache) SetPackages(ctx context.Context, packages []domain.Package) error {
	return c.set(ctx, packagesKey, packages)
}

// Invalidate удаляет пакет и список пакетов: любое изменение пакета меняет и список.
func (c *PackageCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.db.Del(ctx, packageKey(id), packagesKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (c *PackageCache) Close() error {
	return c.db.Close() //nolint:wrapcheck
}

func (c *PackageCache) get(ctx context.Context, key string, result any) error {
	val, err := c.db.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrCacheMiss
		}
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err = json.Unmarshal(val, result); err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return nil
}

func (c *PackageCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	if err = c.db.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func packageKey(id int64) string {
	return packageKeyPrefix + strconv.FormatInt(id, 10)
}
