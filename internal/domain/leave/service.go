package leave

import (
	"context"
	"log/slog"
	"time"

	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
)

// Event is emitted after a lifecycle mutation commits. Delivery is a
// best-effort side channel: subscribers run outside the transaction and
// their failures never surface to the caller.
type Event struct {
	Type     string
	Request  *LeaveRequest
	Employee *directory.Employee
	Actor    *directory.Employee
	Chain    directory.Chain
	Approved int
	Rejected int
}

const (
	EventApplied   = "leave_applied"
	EventEdited    = "leave_edited"
	EventDecided   = "leave_decided"
	EventConverted = "leave_converted"
)

type Notifier interface {
	LeaveEvent(ctx context.Context, ev Event)
}

// CertificateStore is the opaque blob store for medical certificates. The
// engine only ever holds the key.
type CertificateStore interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	Store        *Store
	Directory    *directory.Store
	Ledger       Ledger
	Policy       Policy
	Notifier     Notifier
	Certificates CertificateStore

	// Now is injected so rule evaluation is testable; date math runs on
	// wall-clock calendar days, never UTC-shifted instants.
	Now func() time.Time
}

func NewService(store *Store, dir *directory.Store, policy Policy, notifier Notifier, certs CertificateStore) *Service {
	return &Service{
		Store:        store,
		Directory:    dir,
		Ledger:       Ledger{Policy: policy},
		Policy:       policy,
		Notifier:     notifier,
		Certificates: certs,
		Now:          time.Now,
	}
}

func (s *Service) today() Date {
	return DateOf(s.Now())
}

type ApplyInput struct {
	Type             LeaveType   `json:"leaveType"`
	StartDate        string      `json:"startDate"`
	EndDate          string      `json:"endDate"`
	StartGranularity Granularity `json:"startGranularity"`
	EndGranularity   Granularity `json:"endGranularity"`
	Reason           string      `json:"reason"`
	PermissionStart  string      `json:"permissionStart"`
	PermissionEnd    string      `json:"permissionEnd"`
	CertificateKey   string      `json:"certificateKey"`
}

// validate runs the full rule pipeline against in. excludeRequestID keeps
// Edit from colliding with its own days; selfRefund is the weight added
// back to the available balance when editing within the same type.
func (s *Service) validate(ctx context.Context, employee *directory.Employee, in ApplyInput, excludeRequestID string, selfRefund StatusWeights) (*LeaveRequest, []DaySpan, error) {
	if !in.Type.Valid() {
		return nil, nil, Validationf("unknown leave type %q", in.Type)
	}
	if in.StartDate == "" || in.EndDate == "" {
		return nil, nil, Validationf("start and end dates are required")
	}
	start, err := ParseDate(in.StartDate)
	if err != nil {
		return nil, nil, Validationf("invalid start date %q", in.StartDate)
	}
	end, err := ParseDate(in.EndDate)
	if err != nil {
		return nil, nil, Validationf("invalid end date %q", in.EndDate)
	}
	if end.Before(start) {
		return nil, nil, Validationf("end date %s is before start date %s", end, start)
	}
	if in.StartGranularity == "" {
		in.StartGranularity = GranFull
	}
	if in.EndGranularity == "" {
		in.EndGranularity = GranFull
	}
	if !in.StartGranularity.Valid() || !in.EndGranularity.Valid() {
		return nil, nil, Validationf("invalid day granularity")
	}

	today := s.today()
	if err := ValidateDateWindow(in.Type, start, today); err != nil {
		return nil, nil, err
	}
	if err := ValidatePermissionWindow(in.Type, in.PermissionStart, in.PermissionEnd); err != nil {
		return nil, nil, err
	}
	if err := ValidateEmployeeEligibility(employee.Status, in.Type); err != nil {
		return nil, nil, err
	}
	if in.CertificateKey != "" && in.Type != TypeSick {
		return nil, nil, Validationf("medical certificates only attach to sick leave")
	}

	holidays, err := s.Store.ActiveHolidaySet(ctx, start, end)
	if err != nil {
		return nil, nil, err
	}
	total, days, err := CalculateLeaveDays(start, end, in.StartGranularity, in.EndGranularity, in.Type, employee.Role, holidays)
	if err != nil {
		return nil, nil, err
	}
	if !total.IsPositive() {
		return nil, nil, Validationf("no valid leave days in the selected range")
	}

	if in.Type == TypeCasual {
		if err := ValidateCasualNotice(total, start, today); err != nil {
			return nil, nil, err
		}
	}

	existing, err := s.Store.NonRejectedDaysInRange(ctx, employee.ID, start, end, excludeRequestID)
	if err != nil {
		return nil, nil, err
	}
	if err := FindOverlap(existing, days); err != nil {
		return nil, nil, err
	}

	switch in.Type {
	case TypeLOP, TypeCasual:
		cap := s.Policy.LOPMonthlyCap
		if in.Type == TypeCasual {
			cap = s.Policy.CasualMonthlyCap
		}
		committed, err := s.Store.MonthlyCommittedWeights(ctx, employee.ID, in.Type, excludeRequestID)
		if err != nil {
			return nil, nil, err
		}
		if err := ValidateMonthlyCap(in.Type, days, committed, cap); err != nil {
			return nil, nil, err
		}
	}

	balance, err := s.Store.GetBalance(ctx, s.Store.DB, employee.ID)
	if err != nil {
		return nil, nil, err
	}
	available := balance.ForType(in.Type).Add(selfRefund.NonRejected())
	if err := ValidateSufficiency(in.Type, available, total); err != nil {
		return nil, nil, err
	}

	req := &LeaveRequest{
		EmployeeID:       employee.ID,
		Type:             in.Type,
		StartDate:        start,
		EndDate:          end,
		StartGranularity: in.StartGranularity,
		EndGranularity:   in.EndGranularity,
		Reason:           in.Reason,
		NoOfDays:         total,
		PermissionStart:  in.PermissionStart,
		PermissionEnd:    in.PermissionEnd,
		CertificateKey:   in.CertificateKey,
		Status:           StatusPending,
	}
	return req, days, nil
}

// Apply validates and persists a new leave request: request row, day rows
// and the balance debit commit together or not at all. The L1
// notification goes out after commit and can never fail the request.
func (s *Service) Apply(ctx context.Context, employeeID string, in ApplyInput) (string, error) {
	employee, err := s.Directory.GetEmployee(ctx, employeeID)
	if err != nil {
		if err == directory.ErrNotFound {
			return "", NotFoundf("employee not found")
		}
		return "", err
	}

	req, days, err := s.validate(ctx, employee, in, "", StatusWeights{})
	if err != nil {
		return "", err
	}
	req.LastActorID = employee.ID
	req.LastActorRole = employee.Role

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	id, err := s.Store.InsertRequestTx(ctx, tx, req)
	if err != nil {
		return "", err
	}
	if err := s.Store.InsertDaysTx(ctx, tx, id, employee.ID, req.Type, days); err != nil {
		return "", err
	}
	if err := s.Store.EnsureBalance(ctx, tx, employee.ID); err != nil {
		return "", err
	}
	if err := s.Ledger.Debit(ctx, tx, employee.ID, req.Type, req.NoOfDays); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	req.ID = id

	chain, err := s.Directory.ResolveChain(ctx, employee.ID)
	if err != nil {
		chain = directory.Chain{}
	}
	s.emit(Event{Type: EventApplied, Request: req, Employee: employee, Actor: employee, Chain: chain})
	return id, nil
}

// Edit replaces a request wholesale: all days are recreated as pending,
// the approval pipeline re-opens, and balances move by refund-old /
// debit-new. Pending requests only, unless the actor carries HR or
// Super-Admin powers.
func (s *Service) Edit(ctx context.Context, requestID, actorID string, in ApplyInput) error {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return err
	}
	actor, target, chain, err := s.loadParties(ctx, actorID, req.EmployeeID)
	if err != nil {
		return err
	}
	if actor.ID != target.ID {
		if err := CanActOn(actor, target, chain); err != nil {
			return err
		}
	}
	if req.Status != StatusPending && !auth.IsAdmin(actor.Role) {
		return Statef("only pending requests can be edited")
	}

	oldWeights := WeightsByStatus(req.Days)
	selfRefund := StatusWeights{}
	if in.Type == req.Type {
		selfRefund = oldWeights
	}
	updated, days, err := s.validate(ctx, target, in, requestID, selfRefund)
	if err != nil {
		return err
	}
	updated.ID = requestID
	updated.LastActorID = actor.ID
	updated.LastActorRole = actor.Role

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.Store.DeleteDaysTx(ctx, tx, requestID); err != nil {
		return err
	}
	// Refund what is still committed on the old request. Rejected days
	// were refunded when they were rejected.
	if req.Status != StatusRejected {
		if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, oldWeights.NonRejected()); err != nil {
			return err
		}
	}
	if err := s.Store.EnsureBalance(ctx, tx, target.ID); err != nil {
		return err
	}
	if err := s.Ledger.Debit(ctx, tx, target.ID, updated.Type, updated.NoOfDays); err != nil {
		return err
	}
	if err := s.Store.InsertDaysTx(ctx, tx, requestID, target.ID, updated.Type, days); err != nil {
		return err
	}
	if err := s.Store.UpdateRequestForEditTx(ctx, tx, updated); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.emit(Event{Type: EventEdited, Request: updated, Employee: target, Actor: actor, Chain: chain})
	return nil
}

// Delete removes a pending request and restores the committed balance
// exactly. The certificate blob, if any, goes with it.
func (s *Service) Delete(ctx context.Context, requestID, actorID string) error {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return err
	}
	actor, err := s.Directory.GetEmployee(ctx, actorID)
	if err != nil {
		if err == directory.ErrNotFound {
			return NotFoundf("employee not found")
		}
		return err
	}
	if actor.ID != req.EmployeeID && !auth.IsAdmin(actor.Role) {
		return Forbiddenf("only the owner, hr or super admin can delete a leave request")
	}
	if req.Status != StatusPending {
		return Statef("only pending requests can be deleted")
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.Store.EnsureBalance(ctx, tx, req.EmployeeID); err != nil {
		return err
	}
	if err := s.Ledger.Credit(ctx, tx, req.EmployeeID, req.Type, req.NoOfDays); err != nil {
		return err
	}
	if err := s.Store.DeleteDaysTx(ctx, tx, requestID); err != nil {
		return err
	}
	if err := s.Store.DeleteRequestTx(ctx, tx, requestID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if req.CertificateKey != "" && s.Certificates != nil {
		if err := s.Certificates.Delete(ctx, req.CertificateKey); err != nil {
			slog.Warn("certificate delete failed", "requestId", requestID, "key", req.CertificateKey, "err", err)
		}
	}
	return nil
}

// GetRequest enforces view authorization: actors outside the chain see
// NotFound, not Forbidden.
func (s *Service) GetRequest(ctx context.Context, requestID, actorID string) (*LeaveRequest, error) {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.loadParties(ctx, actorID, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if err := CanView(actor, target, chain); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, actorID string, limit, offset int) ([]LeaveRequest, error) {
	actor, err := s.Directory.GetEmployee(ctx, actorID)
	if err != nil {
		if err == directory.ErrNotFound {
			return nil, NotFoundf("employee not found")
		}
		return nil, err
	}
	switch actor.Role {
	case auth.RoleHR, auth.RoleSuperAdmin:
		return s.Store.ListAllRequests(ctx, limit, offset)
	case auth.RoleManager:
		return s.Store.ListRequestsForManager(ctx, actor.ID, limit, offset)
	default:
		return s.Store.ListRequestsForEmployee(ctx, actor.ID, limit, offset)
	}
}

func (s *Service) loadParties(ctx context.Context, actorID, targetID string) (actor, target *directory.Employee, chain directory.Chain, err error) {
	actor, err = s.Directory.GetEmployee(ctx, actorID)
	if err != nil {
		if err == directory.ErrNotFound {
			err = NotFoundf("employee not found")
		}
		return
	}
	target, err = s.Directory.GetEmployee(ctx, targetID)
	if err != nil {
		if err == directory.ErrNotFound {
			err = NotFoundf("employee not found")
		}
		return
	}
	chain, err = s.Directory.ResolveChain(ctx, targetID)
	if err != nil && err != directory.ErrNotFound {
		return
	}
	err = nil
	return
}

// emit dispatches an event to the notifier on a detached goroutine. A
// lost notification is acceptable; lost state consistency is not.
func (s *Service) emit(ev Event) {
	if s.Notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("leave notifier panic", "event", ev.Type, "recover", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.Notifier.LeaveEvent(ctx, ev)
	}()
}
