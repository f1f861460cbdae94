package index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func schemeOf(raw string) string {
	if i := strings.Index(raw, ":"); i > 0 {
		return strings.ToLower(raw[:i])
	}
	return ""
}

func openBackend(ctx context.Context, raw string) (backend, error) {
	switch schemeOf(raw) {
	case "sqlite", "file":
		path, err := sqlitePath(raw)
		if err != nil {
			return nil, err
		}
		return openSQLite(ctx, path)
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", raw)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(pgMaxOpenConns)
		db.SetMaxIdleConns(pgMaxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return newSQLBackend(ctx, db, dialectPostgres)
	case "redis", "rediss":
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return newRedisBackend(client), nil
	default:
		return nil, fmt.Errorf("unsupported index url scheme %q", schemeOf(raw))
	}
}

// sqlitePath extracts a filesystem path from sqlite:/path, sqlite:///path,
// sqlite:relative.db or file: forms.
func sqlitePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if u.Host != "" {
		path = u.Host + path
	}
	if path == "" {
		return "", fmt.Errorf("sqlite index path is required")
	}
	return path, nil
}
