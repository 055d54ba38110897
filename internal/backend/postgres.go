// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"universalmcp/cli/internal/dsn"
	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SessionTTL is how long a token issued by the postgres transport stays valid.
const SessionTTL = 30 * 24 * time.Hour

// tokenPrefix marks tokens issued by this transport.
const tokenPrefix = "mcp_"

// schema creates the user and session tables when missing.
const schema = `
CREATE TABLE IF NOT EXISTS mcp_users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL,
	permissions   TEXT[] NOT NULL DEFAULT '{}',
	avatar_url    TEXT,
	department    TEXT,
	password_hash TEXT NOT NULL,
	last_login_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS mcp_users_email_lower ON mcp_users (lower(email));
CREATE TABLE IF NOT EXISTS mcp_sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES mcp_users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);`

const userColumns = `u.id, u.name, u.email, u.role, u.permissions, u.avatar_url, u.department, u.last_login_at`

// dummyHash keeps the cost of a login for an unknown email equal to a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("universal-mcp"), bcrypt.DefaultCost)
	return h
})

// querier is the subset of pgxpool.Pool used by Postgres.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements API directly against a hosted Postgres database.
type Postgres struct {
	db   querier
	pool *pgxpool.Pool
	log  *zap.Logger
	now  func() time.Time
}

// OpenPostgres connects to the database named by rawDSN.
func OpenPostgres(ctx context.Context, rawDSN string, log *zap.Logger) (*Postgres, error) {
	if strings.TrimSpace(rawDSN) == "" {
		return nil, errors.New("postgres transport needs a DSN: set postgres.dsn, UMCP_DATABASE_URL or save one to the keychain")
	}
	normalized, err := dsn.Normalize(rawDSN)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ServiceUnavailable, "cannot connect to the user database", err)
	}
	p := newPostgres(pool, log)
	p.pool = pool
	return p, nil
}

func newPostgres(db querier, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{db: db, log: log, now: time.Now}
}

// EnsureSchema creates the mcp_users and mcp_sessions tables if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return dbError(ctx, err)
	}
	return nil
}

// VerifyCredentials checks the bcrypt hash of the user's password and issues a
// new opaque session token. The returned user carries the previous login time.
func (p *Postgres) VerifyCredentials(ctx context.Context, email, password string) (session.User, string, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+userColumns+`, u.password_hash FROM mcp_users u WHERE lower(u.email) = lower($1)`,
		strings.TrimSpace(email))

	var hash string
	user, err := scanUser(row, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return session.User{}, "", errs.ErrInvalidCredentials
	}
	if err != nil {
		return session.User{}, "", dbError(ctx, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return session.User{}, "", errs.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return session.User{}, "", errs.Wrap(errs.ServiceUnavailable, "cannot issue a session token", err)
	}
	now := p.now()
	if _, err := p.db.Exec(ctx,
		`INSERT INTO mcp_sessions (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		hashToken(token), user.ID, now, now.Add(SessionTTL)); err != nil {
		return session.User{}, "", dbError(ctx, err)
	}
	if _, err := p.db.Exec(ctx, `UPDATE mcp_users SET last_login_at = $2 WHERE id = $1`, user.ID, now); err != nil {
		p.log.Warn("could not stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, token, nil
}

// ValidateToken returns the owner of a non-expired session.
func (p *Postgres) ValidateToken(ctx context.Context, token string) (session.User, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return session.User{}, errs.ErrInvalidToken
	}
	row := p.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM mcp_sessions s JOIN mcp_users u ON u.id = s.user_id
		 WHERE s.token_hash = $1 AND s.expires_at > $2`,
		hashToken(token), p.now())

	user, err := scanUser(row, nil)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.User{}, errs.ErrInvalidToken
	}
	if err != nil {
		return session.User{}, dbError(ctx, err)
	}
	return user, nil
}

// Revoke deletes the session. Revoking an unknown token is not an error.
func (p *Postgres) Revoke(ctx context.Context, token string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM mcp_sessions WHERE token_hash = $1`, hashToken(token)); err != nil {
		return dbError(ctx, err)
	}
	return nil
}

// GetVersion reports the database server version.
func (p *Postgres) GetVersion(ctx context.Context) (string, error) {
	var v string
	if err := p.db.QueryRow(ctx, `SHOW server_version`).Scan(&v); err != nil {
		return "", dbError(ctx, err)
	}
	return "postgres " + v, nil
}

// NewUser describes an account to provision.
type NewUser struct {
	Email       string
	Name        string
	Role        session.Role
	Permissions []string
	Department  string
	AvatarURL   string
	Password    string
}

// AddUser provisions an account with a bcrypt-hashed password.
func (p *Postgres) AddUser(ctx context.Context, nu NewUser) (session.User, error) {
	email := strings.TrimSpace(nu.Email)
	if email == "" || !strings.Contains(email, "@") {
		return session.User{}, fmt.Errorf("invalid email %q", nu.Email)
	}
	if !nu.Role.Valid() {
		return session.User{}, fmt.Errorf("unknown role %q", nu.Role)
	}
	if len(nu.Password) < 8 {
		return session.User{}, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return session.User{}, err
	}

	u := session.User{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(nu.Name),
		Email:       email,
		Role:        nu.Role,
		Permissions: append([]string{}, nu.Permissions...),
		AvatarURL:   nu.AvatarURL,
		Department:  nu.Department,
	}
	if _, err := p.db.Exec(ctx,
		`INSERT INTO mcp_users (id, email, name, role, permissions, avatar_url, department, password_hash)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`,
		u.ID, u.Email, u.Name, string(u.Role), u.Permissions, u.AvatarURL, u.Department, string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return session.User{}, fmt.Errorf("a user with email %s already exists", email)
		}
		return session.User{}, dbError(ctx, err)
	}
	return u, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// scanUser reads userColumns, plus the password hash when hash is non-nil.
func scanUser(row pgx.Row, hash *string) (session.User, error) {
	var (
		u          session.User
		role       string
		avatar     *string
		department *string
		lastLogin  *time.Time
	)
	dest := []any{&u.ID, &u.Name, &u.Email, &role, &u.Permissions, &avatar, &department, &lastLogin}
	if hash != nil {
		dest = append(dest, hash)
	}
	if err := row.Scan(dest...); err != nil {
		return session.User{}, err
	}
	if avatar != nil {
		u.AvatarURL = *avatar
	}
	if department != nil {
		u.Department = *department
	}
	u.LastLogin = lastLogin
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	r, err := session.ParseRole(role)
	if err != nil {
		return session.User{}, err
	}
	u.Role = r
	return u, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return tokenPrefix + hex.EncodeToString(b), nil
}

// hashToken is the lookup key of a token; raw tokens are never stored.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func dbError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.Wrap(errs.Timeout, "the user database did not answer in time, please try again", err)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.Canceled, "request was canceled", err)
	default:
		return errs.Wrap(errs.ServiceUnavailable, "cannot reach the user database", err)
	}
}
