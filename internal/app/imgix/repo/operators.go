package repo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrOperatorNotFound = errors.New("operator not found")
var ErrOperatorExists = errors.New("operator already exists")
var ErrInvalidUsername = errors.New("username is not allowed")
var ErrInvalidPassword = errors.New("password is not allowed")
var ErrInvalidRole = errors.New("role is not allowed")

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

type OperatorsRepo struct {
	db *pgxpool.Pool
}

func NewOperatorsRepo(db *pgxpool.Pool) *OperatorsRepo {
	return &OperatorsRepo{db: db}
}

type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
}

func (o *OperatorsRepo) FindByUsername(ctx context.Context, username string) (Operator, error) {
	username = strings.TrimSpace(username)
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := o.db.QueryRow(dbctx, `SELECT id, username, password_hash, role FROM operators WHERE username=$1 LIMIT 1`, username)
	var op Operator
	if err := row.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, ErrOperatorNotFound
		}
		slog.Error("find operator failed", "err", err)
		return Operator{}, err
	}
	return op, nil
}

// Create hashes password with bcrypt and stores a new operator.
func (o *OperatorsRepo) Create(ctx context.Context, username, password, role string) (int64, error) {
	username = strings.TrimSpace(username)
	if err := ValidateOperator(username, password, role); err != nil {
		return -1, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("hash password failed", "err", err)
		return -1, err
	}
	return o.insert(ctx, username, string(hash), role)
}

// EnsureWithHash creates the operator from a precomputed bcrypt hash unless
// the username is taken. created is false when it already existed.
func (o *OperatorsRepo) EnsureWithHash(ctx context.Context, username, hash, role string) (created bool, err error) {
	username = strings.TrimSpace(username)
	if !validUsername(username) {
		return false, ErrInvalidUsername
	}
	if !validRole(role) {
		return false, ErrInvalidRole
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, ErrInvalidPassword
	}
	_, err = o.insert(ctx, username, hash, role)
	if errors.Is(err, ErrOperatorExists) {
		return false, nil
	}
	return err == nil, err
}

func (o *OperatorsRepo) insert(ctx context.Context, username, hash, role string) (int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	if err := o.db.
		QueryRow(dbctx, `INSERT INTO operators (username, password_hash, role) VALUES ($1,$2,$3) ON CONFLICT (username) DO NOTHING RETURNING id`, username, hash, role).
		Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, ErrOperatorExists
		}
		slog.Error("insert operator failed", "err", err)
		return -1, err
	}
	return id, nil
}

// CheckPassword compares a bcrypt hash with the plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func ValidateOperator(username, password, role string) error {
	if !validUsername(username) {
		return ErrInvalidUsername
	}
	// bcrypt ignores input past 72 bytes.
	if len(password) < 8 || len(password) > 72 {
		return ErrInvalidPassword
	}
	if !validRole(role) {
		return ErrInvalidRole
	}
	return nil
}

func validUsername(s string) bool {
	return len(s) >= 3 && len(s) <= 32
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleViewer
}
