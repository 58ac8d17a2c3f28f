package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrops/internal/domain/auth"
	"hrops/internal/platform/config"
)

// Seed provisions the bootstrap super admin account so a fresh deployment
// can log in and create the rest of the directory. It is safe to run on
// every startup.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return ensureAdminEmployee(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureAdminEmployee(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM employees WHERE email = $1", email).Scan(&id)
	if err == nil {
		return ensureBalanceRow(ctx, pool, id)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO employees (employee_number, first_name, last_name, email, password_hash, role, status)
    VALUES ('EMP-0001', 'Super', 'Admin', $1, $2, $3, 'active')
    RETURNING id
  `, email, hash, auth.RoleSuperAdmin).Scan(&id)
	if err != nil {
		return err
	}
	return ensureBalanceRow(ctx, pool, id)
}

func ensureBalanceRow(ctx context.Context, pool *pgxpool.Pool, employeeID string) error {
	_, err := pool.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, casual, sick, lop)
    VALUES ($1, 0, 0, 0)
    ON CONFLICT (employee_id) DO NOTHING
  `, employeeID)
	return err
}
