package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"hrops/internal/domain/directory"
	"hrops/internal/domain/leave"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	Store  *Store
	Mailer Mailer
	From   string
}

func New(store *Store, mailer Mailer, from string) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{Store: store, Mailer: mailer, From: from}
}

// Notify writes the in-app notification and, when a mailer is wired,
// mirrors it to email. Both paths are best effort.
func (s *Service) Notify(ctx context.Context, recipient *directory.Employee, ntype, title, body string) {
	if recipient == nil {
		return
	}
	if err := s.Store.Create(ctx, recipient.ID, ntype, title, body); err != nil {
		slog.Warn("notification insert failed", "employeeId", recipient.ID, "err", err)
	}
	if s.Mailer == nil || recipient.Email == "" {
		return
	}
	if err := s.Mailer.Send(ctx, s.From, recipient.Email, title, body); err != nil {
		slog.Warn("notification email send failed", "employeeId", recipient.ID, "err", err)
	}
}

// LeaveEvent routes lifecycle events to the right inboxes: submissions and
// edits go up the chain, decisions and conversions go back to the owner.
func (s *Service) LeaveEvent(ctx context.Context, ev leave.Event) {
	if ev.Request == nil || ev.Employee == nil {
		return
	}
	req := ev.Request
	span := fmt.Sprintf("%s to %s (%s days)", req.StartDate, req.EndDate, req.NoOfDays)

	switch ev.Type {
	case leave.EventApplied:
		title := fmt.Sprintf("Leave request from %s", ev.Employee.FullName())
		body := fmt.Sprintf("%s applied for %s leave %s.", ev.Employee.FullName(), req.Type, span)
		s.Notify(ctx, ev.Chain.L1, TypeLeaveSubmitted, title, body)
		s.Notify(ctx, ev.Chain.L2, TypeLeaveSubmitted, title, body)
	case leave.EventEdited:
		title := fmt.Sprintf("Leave request updated by %s", actorName(ev))
		body := fmt.Sprintf("The %s leave request %s was updated and needs re-approval.", req.Type, span)
		s.Notify(ctx, ev.Chain.L1, TypeLeaveEdited, title, body)
		if ev.Actor != nil && ev.Employee.ID != ev.Actor.ID {
			s.Notify(ctx, ev.Employee, TypeLeaveEdited, title, body)
		}
	case leave.EventDecided:
		title := fmt.Sprintf("Decision on your %s leave request", req.Type)
		body := fmt.Sprintf("%s decided on your %s leave %s: %d day(s) approved, %d rejected.",
			actorName(ev), req.Type, span, ev.Approved, ev.Rejected)
		s.Notify(ctx, ev.Employee, TypeLeaveDecided, title, body)
	case leave.EventConverted:
		title := "Your leave request was converted to casual"
		body := fmt.Sprintf("%s converted your unpaid leave %s to casual leave.", actorName(ev), span)
		s.Notify(ctx, ev.Employee, TypeLeaveConverted, title, body)
	}
}

func actorName(ev leave.Event) string {
	if ev.Actor == nil {
		return "someone"
	}
	return ev.Actor.FullName()
}
