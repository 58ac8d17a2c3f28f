package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hrops/internal/platform/querier"
)

var ErrNotFound = errors.New("employee not found")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    id, COALESCE(employee_number, ''), first_name, COALESCE(last_name, ''),
    email, role, status, COALESCE(reporting_manager_id::text, ''),
    join_date, created_at, updated_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeNumber, &emp.FirstName, &emp.LastName,
		&emp.Email, &emp.Role, &emp.Status, &emp.ReportingManagerID,
		&emp.JoinDate, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, employeeID))
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE lower(email) = lower($1)
  `, email))
}

func (s *Store) PasswordHash(ctx context.Context, employeeID string) (string, error) {
	var hash string
	err := s.DB.QueryRow(ctx, `
    SELECT password_hash FROM employees WHERE id = $1
  `, employeeID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

func (s *Store) ListEmployees(ctx context.Context, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    ORDER BY created_at
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, emp Employee, passwordHash string) (string, error) {
	var managerID any
	if emp.ReportingManagerID != "" {
		managerID = emp.ReportingManagerID
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (employee_number, first_name, last_name, email, password_hash, role, status, reporting_manager_id, join_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, emp.EmployeeNumber, emp.FirstName, emp.LastName, emp.Email, passwordHash, emp.Role, emp.Status, managerID, emp.JoinDate).Scan(&id)
	return id, err
}

func (s *Store) IsManagerOf(ctx context.Context, managerID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE id = $1 AND reporting_manager_id = $2
  `, employeeID, managerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveChain walks reporting_manager_id up to three levels. The chain is
// derived at query time, never stored; a missing manager simply shortens
// the chain.
func (s *Store) ResolveChain(ctx context.Context, employeeID string) (Chain, error) {
	var chain Chain
	current := employeeID
	links := []**Employee{&chain.L1, &chain.L2, &chain.L3}
	for _, link := range links {
		var managerID string
		err := s.DB.QueryRow(ctx, `
      SELECT COALESCE(reporting_manager_id::text, '')
      FROM employees
      WHERE id = $1
    `, current).Scan(&managerID)
		if errors.Is(err, pgx.ErrNoRows) {
			if current == employeeID {
				return chain, ErrNotFound
			}
			return chain, nil
		}
		if err != nil {
			return chain, err
		}
		if managerID == "" {
			return chain, nil
		}
		manager, err := s.GetEmployee(ctx, managerID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return chain, nil
			}
			return chain, err
		}
		*link = manager
		current = managerID
	}
	return chain, nil
}
