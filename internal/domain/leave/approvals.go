package leave

import (
	"context"

	"github.com/shopspring/decimal"

	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
)

// DecisionResult reports what an approval action changed.
type DecisionResult struct {
	Approved int    `json:"approved"`
	Rejected int    `json:"rejected"`
	Status   Status `json:"status"`
}

// authorizeDecision loads the parties, runs the approval matrix and the
// super-admin lockout: once a super admin has acted on a request, lower
// tiers are frozen out of it.
func (s *Service) authorizeDecision(ctx context.Context, req *LeaveRequest, actorID string) (*directory.Employee, *directory.Employee, directory.Chain, error) {
	actor, target, chain, err := s.loadParties(ctx, actorID, req.EmployeeID)
	if err != nil {
		return nil, nil, directory.Chain{}, err
	}
	if err := CanActOn(actor, target, chain); err != nil {
		return nil, nil, directory.Chain{}, err
	}
	if req.SuperAdmin.Acted() && actor.Role != auth.RoleSuperAdmin {
		return nil, nil, directory.Chain{}, Forbiddenf("a super admin has already decided this request")
	}
	return actor, target, chain, nil
}

// ApproveRequest approves every still-pending day on the request.
// Previously rejected days stay rejected; their refunds already happened.
// The aggregate status is always re-derived from the day set; a fully
// approved outcome is held at pending until the terminal tier signs off,
// whose own ApproveRequest then records the final transition.
func (s *Service) ApproveRequest(ctx context.Context, requestID, actorID, comment string) (*DecisionResult, error) {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusApproved {
		return nil, Statef("request is already approved")
	}
	pending := 0
	approved := 0
	for _, d := range req.Days {
		switch d.Status {
		case StatusPending:
			pending++
		case StatusApproved:
			approved++
		}
	}
	if pending == 0 && approved == 0 {
		return nil, Statef("request has no days left to approve")
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// A later tier signing off on days an earlier tier already approved
	// has nothing to flip; it only records its decision.
	if pending > 0 {
		affected, err := s.Store.MarkDaysTx(ctx, tx, requestID, nil, []Status{StatusPending}, StatusApproved, actor)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, Forbiddenf("only direct reports can be actioned")
		}
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), StatusApproved, comment, actor.ID); err != nil {
		return nil, err
	}

	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	status := RecalculateStatus(days)
	if status == StatusApproved && !TerminalApproval(actor.Role, chain) {
		status = StatusPending
	}
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, status, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Approved: pending})
	return &DecisionResult{Approved: pending, Status: status}, nil
}

// RejectRequest rejects every non-rejected day and refunds their combined
// weight. Rejection is terminal at any tier, so the aggregate status is
// always re-derived here.
func (s *Service) RejectRequest(ctx context.Context, requestID, actorID, comment string) (*DecisionResult, error) {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusRejected {
		return nil, Statef("request is already rejected")
	}
	weights := WeightsByStatus(req.Days)
	refund := weights.NonRejected()
	if !refund.IsPositive() {
		return nil, Statef("request has no remaining days to reject")
	}
	count := 0
	for _, d := range req.Days {
		if d.Status != StatusRejected {
			count++
		}
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	affected, err := s.Store.MarkDaysTx(ctx, tx, requestID, nil, []Status{StatusPending, StatusApproved}, StatusRejected, actor)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, Forbiddenf("only direct reports can be actioned")
	}
	if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, refund); err != nil {
		return nil, err
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), StatusRejected, comment, actor.ID); err != nil {
		return nil, err
	}
	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	status := RecalculateStatus(days)
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, status, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Rejected: count})
	return &DecisionResult{Rejected: count, Status: status}, nil
}

// ApproveDays approves the named pending days and auto-rejects the rest of
// the request's pending days, refunding the rejected weight. This is the
// "approve Wednesday, drop the rest" flow: one decision settles every
// outstanding day.
func (s *Service) ApproveDays(ctx context.Context, requestID, actorID string, dayIDs []string, comment string) (*DecisionResult, error) {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if len(dayIDs) == 0 {
		return nil, Validationf("no days selected")
	}

	byID := make(map[string]LeaveDay, len(req.Days))
	for _, d := range req.Days {
		byID[d.ID] = d
	}
	for _, id := range dayIDs {
		day, ok := byID[id]
		if !ok {
			return nil, NotFoundf("day %s does not belong to this request", id)
		}
		if day.Status != StatusPending {
			return nil, Statef("day %s is already %s", day.Date, day.Status)
		}
	}

	selected := make(map[string]bool, len(dayIDs))
	for _, id := range dayIDs {
		selected[id] = true
	}
	refund := decimal.Zero
	rejected := 0
	for _, d := range req.Days {
		if d.Status == StatusPending && !selected[d.ID] {
			refund = refund.Add(d.Weight())
			rejected++
		}
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	affected, err := s.Store.MarkDaysTx(ctx, tx, requestID, dayIDs, []Status{StatusPending}, StatusApproved, actor)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, Forbiddenf("only direct reports can be actioned")
	}
	if rejected > 0 {
		if _, err := s.Store.MarkDaysTx(ctx, tx, requestID, nil, []Status{StatusPending}, StatusRejected, actor); err != nil {
			return nil, err
		}
		if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, refund); err != nil {
			return nil, err
		}
	}
	tierStatus := StatusApproved
	if rejected > 0 {
		tierStatus = StatusPartiallyApproved
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), tierStatus, comment, actor.ID); err != nil {
		return nil, err
	}

	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	status := RecalculateStatus(days)
	if status == StatusApproved && !TerminalApproval(actor.Role, chain) {
		status = StatusPending
	}
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, status, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Approved: len(dayIDs), Rejected: rejected})
	return &DecisionResult{Approved: len(dayIDs), Rejected: rejected, Status: status}, nil
}

// RejectDays rejects the named days and refunds their weight in a single
// credit. Already-rejected days error rather than double-refund. Untouched
// pending days stay pending.
func (s *Service) RejectDays(ctx context.Context, requestID, actorID string, dayIDs []string, comment string) (*DecisionResult, error) {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if len(dayIDs) == 0 {
		return nil, Validationf("no days selected")
	}

	byID := make(map[string]LeaveDay, len(req.Days))
	for _, d := range req.Days {
		byID[d.ID] = d
	}
	refund := decimal.Zero
	for _, id := range dayIDs {
		day, ok := byID[id]
		if !ok {
			return nil, NotFoundf("day %s does not belong to this request", id)
		}
		if day.Status == StatusRejected {
			return nil, Statef("day %s is already rejected", day.Date)
		}
		// Approved days may be rejected too; their debit is still held.
		refund = refund.Add(day.Weight())
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	affected, err := s.Store.MarkDaysTx(ctx, tx, requestID, dayIDs, []Status{StatusPending, StatusApproved}, StatusRejected, actor)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, Forbiddenf("only direct reports can be actioned")
	}
	if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, refund); err != nil {
		return nil, err
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), StatusRejected, comment, actor.ID); err != nil {
		return nil, err
	}
	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	status := RecalculateStatus(days)
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, status, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Rejected: len(dayIDs)})
	return &DecisionResult{Rejected: len(dayIDs), Status: status}, nil
}

// DecideDay flips a single day in either direction and settles the ledger
// delta. Resurrecting a rejected day back to approved is an hr/super_admin
// correction and re-charges the balance; the sufficiency guard in the
// debit still applies.
func (s *Service) DecideDay(ctx context.Context, requestID, dayID, actorID string, decision Status, comment string) (*DecisionResult, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, Validationf("day decision must be approved or rejected")
	}
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}

	var day *LeaveDay
	for i := range req.Days {
		if req.Days[i].ID == dayID {
			day = &req.Days[i]
			break
		}
	}
	if day == nil {
		return nil, NotFoundf("day %s does not belong to this request", dayID)
	}
	if day.Status == decision {
		return nil, Statef("day %s is already %s", day.Date, decision)
	}
	if day.Status == StatusRejected && !auth.IsAdmin(actor.Role) {
		return nil, Forbiddenf("only hr or super admin can reinstate a rejected day")
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	affected, err := s.Store.MarkDaysTx(ctx, tx, requestID, []string{dayID}, []Status{day.Status}, decision, actor)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, Forbiddenf("only direct reports can be actioned")
	}
	switch {
	case decision == StatusRejected:
		if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, day.Weight()); err != nil {
			return nil, err
		}
	case day.Status == StatusRejected:
		if err := s.Ledger.Debit(ctx, tx, target.ID, req.Type, day.Weight()); err != nil {
			return nil, err
		}
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), decision, comment, actor.ID); err != nil {
		return nil, err
	}

	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	status := RecalculateStatus(days)
	if status == StatusApproved && !TerminalApproval(actor.Role, chain) {
		status = StatusPending
	}
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, status, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &DecisionResult{Status: status}
	if decision == StatusApproved {
		result.Approved = 1
	} else {
		result.Rejected = 1
	}
	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Approved: result.Approved, Rejected: result.Rejected})
	return result, nil
}

// ForceStatus is the hr/super_admin override. A wholesale status sets
// every day to it; partially_approved takes a day selection to approve
// and rejects the rest. The ledger moves by the net delta between the old
// and new day states and the final aggregate is re-derived from the
// resulting day set.
func (s *Service) ForceStatus(ctx context.Context, requestID, actorID string, status Status, dayIDs []string, comment string) (*DecisionResult, error) {
	switch status {
	case StatusApproved, StatusRejected, StatusPending:
		if len(dayIDs) > 0 {
			return nil, Validationf("a day selection is only valid with status partially_approved")
		}
	case StatusPartiallyApproved:
		if len(dayIDs) == 0 {
			return nil, Validationf("status partially_approved requires a day selection")
		}
	default:
		return nil, Validationf("status must be approved, rejected, pending or partially_approved")
	}
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return nil, err
	}
	actor, target, chain, err := s.authorizeDecision(ctx, req, actorID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin(actor.Role) {
		return nil, Forbiddenf("only hr or super admin can override a request status")
	}

	selected := make(map[string]bool, len(dayIDs))
	if status == StatusPartiallyApproved {
		byID := make(map[string]bool, len(req.Days))
		for _, d := range req.Days {
			byID[d.ID] = true
		}
		for _, id := range dayIDs {
			if !byID[id] {
				return nil, NotFoundf("day %s does not belong to this request", id)
			}
			selected[id] = true
		}
	}

	// Rejected days have been refunded; everything else is still charged.
	// Moving a day to rejected refunds its weight, moving one out of
	// rejected re-charges it.
	var refund, charge decimal.Decimal
	switch status {
	case StatusRejected:
		refund = WeightsByStatus(req.Days).NonRejected()
	case StatusPartiallyApproved:
		for _, d := range req.Days {
			switch {
			case selected[d.ID] && d.Status == StatusRejected:
				charge = charge.Add(d.Weight())
			case !selected[d.ID] && d.Status != StatusRejected:
				refund = refund.Add(d.Weight())
			}
		}
	default:
		charge = WeightsByStatus(req.Days).Rejected
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	anyStatus := []Status{StatusPending, StatusApproved, StatusRejected}
	if status == StatusPartiallyApproved {
		if _, err := s.Store.MarkDaysTx(ctx, tx, requestID, nil, anyStatus, StatusRejected, actor); err != nil {
			return nil, err
		}
		if _, err := s.Store.MarkDaysTx(ctx, tx, requestID, dayIDs, []Status{StatusRejected}, StatusApproved, actor); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.Store.MarkDaysTx(ctx, tx, requestID, nil, anyStatus, status, actor); err != nil {
			return nil, err
		}
	}
	if refund.IsPositive() {
		if err := s.Ledger.Credit(ctx, tx, target.ID, req.Type, refund); err != nil {
			return nil, err
		}
	}
	if charge.IsPositive() {
		if err := s.Ledger.Debit(ctx, tx, target.ID, req.Type, charge); err != nil {
			return nil, err
		}
	}
	if err := s.Store.SetTierDecisionTx(ctx, tx, requestID, Tier(actor.Role), status, comment, actor.ID); err != nil {
		return nil, err
	}
	days, err := s.Store.DaysForRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	derived := RecalculateStatus(days)
	if err := s.Store.SetRequestStatusTx(ctx, tx, requestID, derived, actor.ID, actor.Role); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &DecisionResult{Status: derived}
	if status == StatusPartiallyApproved {
		result.Approved = len(dayIDs)
		result.Rejected = len(req.Days) - len(dayIDs)
	}
	s.emit(Event{Type: EventDecided, Request: req, Employee: target, Actor: actor, Chain: chain, Approved: result.Approved, Rejected: result.Rejected})
	return result, nil
}

// ConvertToCasual rewrites a pending LOP request as casual leave: the LOP
// hold is released, casual rules and sufficiency are re-checked against
// the same date range and the days are recreated as pending casual days.
func (s *Service) ConvertToCasual(ctx context.Context, requestID, actorID string) error {
	req, err := s.Store.GetRequest(ctx, s.Store.DB, requestID)
	if err != nil {
		return err
	}
	actor, target, chain, err := s.loadParties(ctx, actorID, req.EmployeeID)
	if err != nil {
		return err
	}
	if !auth.IsAdmin(actor.Role) {
		return Forbiddenf("only hr or super admin can convert a request")
	}
	if req.Type != TypeLOP {
		return Statef("only lop requests can be converted to casual")
	}
	if req.Status != StatusPending {
		return Statef("only pending requests can be converted")
	}

	holidays, err := s.Store.ActiveHolidaySet(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return err
	}
	total, days, err := CalculateLeaveDays(req.StartDate, req.EndDate, req.StartGranularity, req.EndGranularity, TypeCasual, target.Role, holidays)
	if err != nil {
		return err
	}
	if !total.IsPositive() {
		return Validationf("the date range contains no chargeable casual days")
	}

	committed, err := s.Store.MonthlyCommittedWeights(ctx, target.ID, TypeCasual, requestID)
	if err != nil {
		return err
	}
	if err := ValidateMonthlyCap(TypeCasual, days, committed, s.Policy.CasualMonthlyCap); err != nil {
		return err
	}
	balance, err := s.Store.GetBalance(ctx, s.Store.DB, target.ID)
	if err != nil {
		return err
	}
	if err := ValidateSufficiency(TypeCasual, balance.Casual, total); err != nil {
		return err
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.Ledger.Credit(ctx, tx, target.ID, TypeLOP, req.NoOfDays); err != nil {
		return err
	}
	if err := s.Ledger.Debit(ctx, tx, target.ID, TypeCasual, total); err != nil {
		return err
	}
	if err := s.Store.DeleteDaysTx(ctx, tx, requestID); err != nil {
		return err
	}
	if err := s.Store.InsertDaysTx(ctx, tx, requestID, target.ID, TypeCasual, days); err != nil {
		return err
	}
	converted := *req
	converted.Type = TypeCasual
	converted.NoOfDays = total
	converted.LastActorID = actor.ID
	converted.LastActorRole = actor.Role
	if err := s.Store.UpdateRequestForEditTx(ctx, tx, &converted); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.emit(Event{Type: EventConverted, Request: &converted, Employee: target, Actor: actor, Chain: chain})
	return nil
}
