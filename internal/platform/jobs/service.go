package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"hrops/internal/domain/leave"
	"hrops/internal/platform/config"
)

const (
	JobMonthlyAccrual = "monthly_accrual"
	JobAnniversary    = "anniversary_credit"
	JobYearEndReset   = "year_end_reset"
)

type Service struct {
	DB     *pgxpool.Pool
	Cfg    config.Config
	Ledger leave.Ledger
	queue  chan job
}

type job struct {
	Type   string
	Period string
	Run    func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, policy leave.Policy) *Service {
	return &Service{
		DB:     db,
		Cfg:    cfg,
		Ledger: leave.Ledger{Policy: policy},
		queue:  make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.AccrualInterval > 0 {
		go s.schedule(ctx, s.Cfg.AccrualInterval)
	}
}

func (s *Service) Enqueue(jobType, period string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Period: period, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "period", period)
	}
}

// RunNow executes a job synchronously, for admin-triggered runs.
func (s *Service) RunNow(ctx context.Context, jobType, period string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Period: period, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "period", j.Period, "err", err)
			}
		}
	}
}

// schedule wakes on the accrual interval and enqueues whichever periodic
// jobs are due. The period key makes each job idempotent: a completed run
// for the same period is never repeated, so the interval can be short.
func (s *Service) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.enqueueDue(ctx, now)
		}
	}
}

func (s *Service) enqueueDue(ctx context.Context, now time.Time) {
	month := now.Format("2006-01")
	if now.Day() == 1 {
		s.enqueueOnce(ctx, JobMonthlyAccrual, month, s.MonthlyAccrual)
		if now.Month() == time.January {
			s.enqueueOnce(ctx, JobYearEndReset, now.Format("2006"), s.YearEndReset)
		}
	}
	s.enqueueOnce(ctx, JobAnniversary, now.Format("2006-01-02"), func(ctx context.Context) (any, error) {
		return s.Anniversary(ctx, now)
	})
}

func (s *Service) enqueueOnce(ctx context.Context, jobType, period string, run func(context.Context) (any, error)) {
	done, err := s.periodCompleted(ctx, jobType, period)
	if err != nil {
		slog.Warn("job period lookup failed", "jobType", jobType, "err", err)
		return
	}
	if done {
		return
	}
	s.Enqueue(jobType, period, run)
}

func (s *Service) periodCompleted(ctx context.Context, jobType, period string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM job_runs
    WHERE job_type = $1 AND period = $2 AND status = 'completed'
  `, jobType, period).Scan(&count)
	return count > 0, err
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, period, status)
    VALUES ($1,$2,'running')
    RETURNING id
  `, j.Type, j.Period).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// MonthlyAccrual credits every non-inactive employee their monthly
// casual and sick grant. Casual clamps at the balance limit so unused
// leave cannot grow without bound.
func (s *Service) MonthlyAccrual(ctx context.Context) (any, error) {
	ids, err := s.creditableEmployees(ctx)
	if err != nil {
		return nil, err
	}
	casual := decimal.NewFromFloat(s.Cfg.MonthlyCasualDays)
	sick := decimal.NewFromFloat(s.Cfg.MonthlySickDays)
	casualCap := decimal.NewFromFloat(s.Cfg.CasualBalanceLimit)

	credited := 0
	for _, id := range ids {
		if err := s.ensureBalance(ctx, id); err != nil {
			return map[string]any{"credited": credited}, err
		}
		if err := s.Ledger.CreditCapped(ctx, s.DB, id, leave.TypeCasual, casual, casualCap); err != nil {
			return map[string]any{"credited": credited}, err
		}
		if err := s.Ledger.Credit(ctx, s.DB, id, leave.TypeSick, sick); err != nil {
			return map[string]any{"credited": credited}, err
		}
		credited++
	}
	return map[string]any{"credited": credited, "casual": casual, "sick": sick}, nil
}

// Anniversary grants one bonus casual day on each employee's join-date
// anniversary.
func (s *Service) Anniversary(ctx context.Context, now time.Time) (any, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM employees
    WHERE status <> 'inactive'
      AND join_date IS NOT NULL
      AND EXTRACT(MONTH FROM join_date) = $1
      AND EXTRACT(DAY FROM join_date) = $2
      AND join_date < $3
  `, int(now.Month()), now.Day(), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bonus := decimal.NewFromInt(1)
	casualCap := decimal.NewFromFloat(s.Cfg.CasualBalanceLimit)
	for _, id := range ids {
		if err := s.ensureBalance(ctx, id); err != nil {
			return nil, err
		}
		if err := s.Ledger.CreditCapped(ctx, s.DB, id, leave.TypeCasual, bonus, casualCap); err != nil {
			return nil, err
		}
	}
	return map[string]any{"credited": len(ids)}, nil
}

// YearEndReset refills every LOP pool to the configured ceiling on the
// first of January. Casual and sick carry forward untouched.
func (s *Service) YearEndReset(ctx context.Context) (any, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_balances
    SET lop = $1, updated_at = now()
  `, decimal.NewFromFloat(s.Cfg.LOPBalanceCeiling))
	if err != nil {
		return nil, err
	}
	return map[string]any{"reset": tag.RowsAffected()}, nil
}

func (s *Service) creditableEmployees(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM employees WHERE status <> 'inactive'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) ensureBalance(ctx context.Context, employeeID string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, casual, sick, lop)
    VALUES ($1, 0, 0, 0)
    ON CONFLICT (employee_id) DO NOTHING
  `, employeeID)
	return err
}
