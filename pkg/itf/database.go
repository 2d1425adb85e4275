// Package itf holds the Postgres helpers shared by integration tests.
package itf

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

type DatabaseOptions struct {
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func Database(tb testing.TB) DatabaseOptions {
	tb.Helper()
	var opts DatabaseOptions
	require.NoError(tb, env.Parse(&opts))
	return opts
}

func (d DatabaseOptions) ConnectionString(dbName string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, dbName, d.Password,
	)
}

func isCI() bool {
	return strings.TrimSpace(os.Getenv("CI")) != "" ||
		strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true")
}

// CanDialPostgres reports whether DB_HOST:DB_PORT accepts TCP connections.
func CanDialPostgres(tb testing.TB) bool {
	tb.Helper()

	opts := Database(tb)
	addr := net.JoinHostPort(opts.Host, opts.Port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// RequirePostgres skips the test when Postgres is unreachable, or fails it on CI.
func RequirePostgres(tb testing.TB) {
	tb.Helper()
	if CanDialPostgres(tb) {
		return
	}
	if isCI() {
		tb.Fatalf("postgres is not reachable (DB_HOST/DB_PORT).")
	}
	tb.Skip("postgres is not reachable; skipping integration test")
}

// CreateDB recreates a database named after the test and returns a pool on it.
func CreateDB(tb testing.TB, name string) *pgxpool.Pool {
	tb.Helper()

	ctx := context.Background()
	opts := Database(tb)
	dbName := sanitizeDBName(name)

	admin, err := pgxpool.New(ctx, opts.ConnectionString(opts.Name))
	require.NoError(tb, err)
	defer admin.Close()

	_, err = admin.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
	require.NoError(tb, err)
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	require.NoError(tb, err)

	pool, err := pgxpool.New(ctx, opts.ConnectionString(dbName))
	require.NoError(tb, err)
	tb.Cleanup(pool.Close)
	return pool
}

// MigrateUp applies the goose migrations under dir of fsys to pool.
func MigrateUp(tb testing.TB, pool *pgxpool.Pool, fsys fs.FS, dir string) {
	tb.Helper()

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, mustSub(tb, fsys, dir))
	require.NoError(tb, err)
	_, err = provider.Up(context.Background())
	require.NoError(tb, err)
}

func mustSub(tb testing.TB, fsys fs.FS, dir string) fs.FS {
	tb.Helper()
	sub, err := fs.Sub(fsys, dir)
	require.NoError(tb, err)
	return sub
}

const (
	// PostgreSQL database name maximum length is 63 characters
	maxDBNameLength = 63
	// Reserve space for hash suffix when truncating (8 chars + underscore)
	hashSuffixLength = 9
)

// sanitizeDBName lowercases name, folds every non [a-z0-9] run into one
// underscore, and shortens it with a hash suffix past 63 characters.
func sanitizeDBName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		sanitized = "test_db"
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "t_" + sanitized
	}
	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))[:8]
	truncated := strings.TrimRight(sanitized[:maxDBNameLength-hashSuffixLength], "_")
	return fmt.Sprintf("%s_%s", truncated, hash)
}
