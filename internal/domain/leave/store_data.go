package leave

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"hrops/internal/domain/directory"
	"hrops/internal/platform/querier"
)

const requestColumns = `
    id, employee_id, leave_type, start_date, end_date,
    start_granularity, end_granularity, COALESCE(reason, ''), no_of_days,
    COALESCE(permission_start, ''), COALESCE(permission_end, ''),
    COALESCE(certificate_key, ''), status,
    COALESCE(manager_status, ''), COALESCE(manager_comment, ''), COALESCE(manager_approver_id::text, ''), manager_decided_at,
    COALESCE(hr_status, ''), COALESCE(hr_comment, ''), COALESCE(hr_approver_id::text, ''), hr_decided_at,
    COALESCE(super_admin_status, ''), COALESCE(super_admin_comment, ''), COALESCE(super_admin_approver_id::text, ''), super_admin_decided_at,
    COALESCE(last_actor_id::text, ''), COALESCE(last_actor_role, ''),
    created_at, updated_at`

func scanRequest(row pgx.Row) (*LeaveRequest, error) {
	var req LeaveRequest
	var start, end time.Time
	err := row.Scan(
		&req.ID, &req.EmployeeID, &req.Type, &start, &end,
		&req.StartGranularity, &req.EndGranularity, &req.Reason, &req.NoOfDays,
		&req.PermissionStart, &req.PermissionEnd,
		&req.CertificateKey, &req.Status,
		&req.Manager.Status, &req.Manager.Comment, &req.Manager.ApproverID, &req.Manager.DecidedAt,
		&req.HR.Status, &req.HR.Comment, &req.HR.ApproverID, &req.HR.DecidedAt,
		&req.SuperAdmin.Status, &req.SuperAdmin.Comment, &req.SuperAdmin.ApproverID, &req.SuperAdmin.DecidedAt,
		&req.LastActorID, &req.LastActorRole,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("leave request not found")
	}
	if err != nil {
		return nil, err
	}
	req.StartDate = DateOf(start)
	req.EndDate = DateOf(end)
	return &req, nil
}

func (s *Store) GetRequest(ctx context.Context, q querier.Querier, requestID string) (*LeaveRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx, `
    SELECT`+requestColumns+`
    FROM leave_requests
    WHERE id = $1
  `, requestID))
	if err != nil {
		return nil, err
	}
	days, err := s.DaysForRequest(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	req.Days = days
	return req, nil
}

func (s *Store) DaysForRequest(ctx context.Context, q querier.Querier, requestID string) ([]LeaveDay, error) {
	rows, err := q.Query(ctx, `
    SELECT id, request_id, employee_id, date, day_type, leave_type, status
    FROM leave_days
    WHERE request_id = $1
    ORDER BY date
  `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDays(rows)
}

func scanDays(rows pgx.Rows) ([]LeaveDay, error) {
	var days []LeaveDay
	for rows.Next() {
		var d LeaveDay
		var date time.Time
		if err := rows.Scan(&d.ID, &d.RequestID, &d.EmployeeID, &date, &d.DayType, &d.LeaveType, &d.Status); err != nil {
			return nil, err
		}
		d.Date = DateOf(date)
		days = append(days, d)
	}
	return days, rows.Err()
}

// NonRejectedDaysInRange fetches the existing days overlap detection runs
// against. excludeRequestID lets Edit ignore the request's own days.
func (s *Store) NonRejectedDaysInRange(ctx context.Context, employeeID string, start, end Date, excludeRequestID string) ([]LeaveDay, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, request_id, employee_id, date, day_type, leave_type, status
    FROM leave_days
    WHERE employee_id = $1
      AND date BETWEEN $2 AND $3
      AND status <> 'rejected'
      AND ($4 = '' OR request_id::text <> $4)
    ORDER BY date
  `, employeeID, start.Time(), end.Time(), excludeRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDays(rows)
}

// MonthlyCommittedWeights sums non-rejected day weights for a leave type
// grouped by calendar month, feeding the monthly-cap rules.
func (s *Store) MonthlyCommittedWeights(ctx context.Context, employeeID string, leaveType LeaveType, excludeRequestID string) (map[string]decimal.Decimal, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT to_char(date, 'YYYY-MM'),
           SUM(CASE WHEN day_type = 'half' THEN 0.5 ELSE 1 END)
    FROM leave_days
    WHERE employee_id = $1
      AND leave_type = $2
      AND status <> 'rejected'
      AND ($3 = '' OR request_id::text <> $3)
    GROUP BY 1
  `, employeeID, leaveType, excludeRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var month string
		var weight decimal.Decimal
		if err := rows.Scan(&month, &weight); err != nil {
			return nil, err
		}
		out[month] = weight
	}
	return out, rows.Err()
}

func (s *Store) GetBalance(ctx context.Context, q querier.Querier, employeeID string) (Balance, error) {
	var b Balance
	err := q.QueryRow(ctx, `
    SELECT employee_id, casual, sick, lop, updated_at
    FROM leave_balances
    WHERE employee_id = $1
  `, employeeID).Scan(&b.EmployeeID, &b.Casual, &b.Sick, &b.LOP, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{EmployeeID: employeeID, Casual: decimal.Zero, Sick: decimal.Zero, LOP: decimal.Zero}, nil
	}
	return b, err
}

func (s *Store) EnsureBalance(ctx context.Context, q querier.Querier, employeeID string) error {
	_, err := q.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, casual, sick, lop)
    VALUES ($1, 0, 0, 0)
    ON CONFLICT (employee_id) DO NOTHING
  `, employeeID)
	return err
}

func (s *Store) ListBalances(ctx context.Context) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, casual, sick, lop, updated_at
    FROM leave_balances
    ORDER BY employee_id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.EmployeeID, &b.Casual, &b.Sick, &b.LOP, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) InsertRequestTx(ctx context.Context, q querier.Querier, req *LeaveRequest) (string, error) {
	var permStart, permEnd, certKey any
	if req.PermissionStart != "" {
		permStart = req.PermissionStart
	}
	if req.PermissionEnd != "" {
		permEnd = req.PermissionEnd
	}
	if req.CertificateKey != "" {
		certKey = req.CertificateKey
	}
	var id string
	err := q.QueryRow(ctx, `
    INSERT INTO leave_requests
      (employee_id, leave_type, start_date, end_date, start_granularity, end_granularity,
       reason, no_of_days, permission_start, permission_end, certificate_key, status,
       last_actor_id, last_actor_role)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'pending',$12,$13)
    RETURNING id
  `, req.EmployeeID, req.Type, req.StartDate.Time(), req.EndDate.Time(),
		req.StartGranularity, req.EndGranularity, req.Reason, req.NoOfDays,
		permStart, permEnd, certKey, req.LastActorID, req.LastActorRole).Scan(&id)
	return id, err
}

func (s *Store) InsertDaysTx(ctx context.Context, q querier.Querier, requestID, employeeID string, leaveType LeaveType, days []DaySpan) error {
	for _, d := range days {
		if _, err := q.Exec(ctx, `
      INSERT INTO leave_days (request_id, employee_id, date, day_type, leave_type, status)
      VALUES ($1,$2,$3,$4,$5,'pending')
    `, requestID, employeeID, d.Date.Time(), d.DayType, leaveType); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteDaysTx(ctx context.Context, q querier.Querier, requestID string) error {
	_, err := q.Exec(ctx, `DELETE FROM leave_days WHERE request_id = $1`, requestID)
	return err
}

func (s *Store) DeleteRequestTx(ctx context.Context, q querier.Querier, requestID string) error {
	_, err := q.Exec(ctx, `DELETE FROM leave_requests WHERE id = $1`, requestID)
	return err
}

// UpdateRequestForEditTx replaces the request fields and re-opens the
// approval pipeline: aggregate and all tier sub-statuses go back to
// pending.
func (s *Store) UpdateRequestForEditTx(ctx context.Context, q querier.Querier, req *LeaveRequest) error {
	var permStart, permEnd any
	if req.PermissionStart != "" {
		permStart = req.PermissionStart
	}
	if req.PermissionEnd != "" {
		permEnd = req.PermissionEnd
	}
	_, err := q.Exec(ctx, `
    UPDATE leave_requests
    SET leave_type = $1, start_date = $2, end_date = $3,
        start_granularity = $4, end_granularity = $5, reason = $6,
        no_of_days = $7, permission_start = $8, permission_end = $9,
        status = 'pending',
        manager_status = NULL, manager_comment = NULL, manager_approver_id = NULL, manager_decided_at = NULL,
        hr_status = NULL, hr_comment = NULL, hr_approver_id = NULL, hr_decided_at = NULL,
        super_admin_status = NULL, super_admin_comment = NULL, super_admin_approver_id = NULL, super_admin_decided_at = NULL,
        last_actor_id = $10, last_actor_role = $11, updated_at = now()
    WHERE id = $12
  `, req.Type, req.StartDate.Time(), req.EndDate.Time(),
		req.StartGranularity, req.EndGranularity, req.Reason,
		req.NoOfDays, permStart, permEnd,
		req.LastActorID, req.LastActorRole, req.ID)
	return err
}

// MarkDaysTx flips day statuses. dayIDs nil means every day on the
// request; fromStatuses filters which current statuses may transition.
// For manager actors the direct-report relationship is re-verified inside
// the statement itself, so a revoked relationship cannot slip through
// between the authorization check and the write.
func (s *Store) MarkDaysTx(ctx context.Context, q querier.Querier, requestID string, dayIDs []string, fromStatuses []Status, to Status, actor *directory.Employee) (int64, error) {
	from := make([]string, len(fromStatuses))
	for i, st := range fromStatuses {
		from[i] = string(st)
	}
	sql := `
    UPDATE leave_days
    SET status = $1
    WHERE request_id = $2
      AND status = ANY($3)
      AND ($4 OR id = ANY($5))
      AND ($6 <> 'manager' OR EXISTS (
        SELECT 1 FROM employees e
        WHERE e.id = leave_days.employee_id AND e.reporting_manager_id = $7
      ))`
	all := dayIDs == nil
	ids := dayIDs
	if ids == nil {
		ids = []string{}
	}
	tag, err := q.Exec(ctx, sql, to, requestID, from, all, ids, actor.Role, actor.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetTierDecisionTx records the decision on the actor's tier columns.
func (s *Store) SetTierDecisionTx(ctx context.Context, q querier.Querier, requestID, tier string, status Status, comment, approverID string) error {
	var column string
	switch tier {
	case "hr":
		column = "hr"
	case "super_admin":
		column = "super_admin"
	default:
		column = "manager"
	}
	_, err := q.Exec(ctx, `
    UPDATE leave_requests
    SET `+column+`_status = $1, `+column+`_comment = $2,
        `+column+`_approver_id = $3, `+column+`_decided_at = now(),
        updated_at = now()
    WHERE id = $4
  `, status, comment, approverID, requestID)
	return err
}

func (s *Store) SetRequestStatusTx(ctx context.Context, q querier.Querier, requestID string, status Status, actorID, actorRole string) error {
	_, err := q.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, last_actor_id = $2, last_actor_role = $3, updated_at = now()
    WHERE id = $4
  `, status, actorID, actorRole, requestID)
	return err
}

func (s *Store) ListRequestsForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]LeaveRequest, error) {
	return s.listRequests(ctx, `WHERE employee_id = $1`, []any{employeeID}, limit, offset)
}

func (s *Store) ListRequestsForManager(ctx context.Context, managerID string, limit, offset int) ([]LeaveRequest, error) {
	return s.listRequests(ctx, `
    WHERE employee_id IN (SELECT id FROM employees WHERE reporting_manager_id = $1)`,
		[]any{managerID}, limit, offset)
}

func (s *Store) ListAllRequests(ctx context.Context, limit, offset int) ([]LeaveRequest, error) {
	return s.listRequests(ctx, ``, nil, limit, offset)
}

func (s *Store) listRequests(ctx context.Context, where string, args []any, limit, offset int) ([]LeaveRequest, error) {
	args = append(args, limit, offset)
	limitPos := len(args) - 1
	sql := `
    SELECT` + requestColumns + `
    FROM leave_requests
  ` + where + `
    ORDER BY created_at DESC
    LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(limitPos+1)
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (s *Store) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, date, name, active, created_at
    FROM holidays
    WHERE $1 = 0 OR EXTRACT(YEAR FROM date) = $1
    ORDER BY date
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		var date time.Time
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Active, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Date = DateOf(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// ActiveHolidaySet loads the active holiday dates intersecting [start,end]
// for the calculator.
func (s *Store) ActiveHolidaySet(ctx context.Context, start, end Date) (HolidaySet, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT date
    FROM holidays
    WHERE active AND date BETWEEN $1 AND $2
  `, start.Time(), end.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(HolidaySet)
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		set[DateOf(date)] = struct{}{}
	}
	return set, rows.Err()
}

func (s *Store) CreateHoliday(ctx context.Context, date Date, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO holidays (date, name, active)
    VALUES ($1, $2, true)
    RETURNING id
  `, date.Time(), name).Scan(&id)
	return id, err
}

func (s *Store) DeleteHoliday(ctx context.Context, holidayID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM holidays WHERE id = $1`, holidayID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("holiday not found")
	}
	return nil
}

// CalendarRows lists approved and pending spans for the calendar views and
// the PDF export.
type CalendarRow struct {
	RequestID    string
	EmployeeID   string
	EmployeeName string
	LeaveType    LeaveType
	StartDate    Date
	EndDate      Date
	NoOfDays     decimal.Decimal
	Status       Status
}

func (s *Store) CalendarRows(ctx context.Context, from, to Date) ([]CalendarRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.id, r.employee_id, e.first_name || ' ' || COALESCE(e.last_name, ''),
           r.leave_type, r.start_date, r.end_date, r.no_of_days, r.status
    FROM leave_requests r
    JOIN employees e ON r.employee_id = e.id
    WHERE r.status IN ('pending', 'approved', 'partially_approved')
      AND r.start_date <= $2 AND r.end_date >= $1
    ORDER BY r.start_date
  `, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalendarRow
	for rows.Next() {
		var row CalendarRow
		var start, end time.Time
		if err := rows.Scan(&row.RequestID, &row.EmployeeID, &row.EmployeeName,
			&row.LeaveType, &start, &end, &row.NoOfDays, &row.Status); err != nil {
			return nil, err
		}
		row.StartDate = DateOf(start)
		row.EndDate = DateOf(end)
		out = append(out, row)
	}
	return out, rows.Err()
}
