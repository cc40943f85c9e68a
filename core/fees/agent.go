package fees

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
)

// Agent is the automation runner: one pass reconciles the whole ledger and
// leaves a bounded, timestamped audit trail. The automatic trigger is gated
// to once per calendar day; manual runs bypass the gate.
type Agent struct {
	svc     *Service
	mailSvc core.EmailService
	logger  core.Logger
	conf    *core.Config
}

func NewAgent(svc *Service, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Agent {
	return &Agent{
		svc:     svc,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// RunDaily runs the pass unless one has already run today. It reports whether
// a pass actually ran.
func (a *Agent) RunDaily(ctx context.Context) (bool, error) {
	now := nowFunc().UTC()
	state, err := a.svc.repo.GetAgentState(ctx)
	if err != nil && err != ErrNotFound {
		return false, errors.Wrap(err, "reading agent state")
	}
	if state.LastRunDay.Valid && state.LastRunDay.String == now.Format(dateLayout) {
		return false, nil
	}
	if _, err = a.Run(ctx, now); err != nil {
		return false, err
	}
	return true, nil
}

// Run executes one full reconciliation pass as of `now` and appends the audit
// entries describing it. Already-applied account mutations survive a failure;
// a FAILED entry is written instead of silently truncating the pass.
func (a *Agent) Run(ctx context.Context, now time.Time) ([]AgentRun, error) {
	now = now.UTC()

	accounts, err := a.svc.RecalcAll(ctx, now)
	if err != nil {
		wrapped := errors.Wrap(err, "reconciling accounts")
		a.fail(ctx, now, wrapped)
		return nil, wrapped
	}

	var overdue []Account
	for _, acct := range accounts {
		if acct.Status == StatusOverdue {
			overdue = append(overdue, acct)
		}
	}

	entries := []AgentRun{
		a.reminderEntry(now, overdue),
		a.entry(now, "Fine policy", "Per-day late fines applied deterministically to all outstanding balances."),
	}

	structures, err := a.svc.repo.QueryAllStructures(ctx)
	if err != nil {
		wrapped := errors.Wrap(err, "listing structures")
		a.fail(ctx, now, wrapped)
		return nil, wrapped
	}
	entries = append(entries, a.dueDateEntry(now, structures))

	categories, err := a.svc.repo.QueryAllCategories(ctx)
	if err != nil {
		wrapped := errors.Wrap(err, "listing categories")
		a.fail(ctx, now, wrapped)
		return nil, wrapped
	}
	entries = append(entries, a.categoryEntry(now, categories))

	if err = a.append(ctx, entries); err != nil {
		a.fail(ctx, now, err)
		return nil, err
	}
	if err = a.svc.repo.SaveAgentState(ctx, AgentState{
		LastRunAt:  null.TimeFrom(now),
		LastRunDay: null.StringFrom(now.Format(dateLayout)),
	}); err != nil {
		return entries, errors.Wrap(err, "saving agent state")
	}

	a.sendReminders(overdue)
	return entries, nil
}

func (a *Agent) entry(now time.Time, title, details string) AgentRun {
	return AgentRun{
		ID:      uuid.New().String(),
		Agent:   a.conf.Fees.AgentName,
		Status:  RunCompleted,
		Title:   title,
		Details: details,
		RanAt:   now,
	}
}

func (a *Agent) reminderEntry(now time.Time, overdue []Account) AgentRun {
	if len(overdue) == 0 {
		return a.entry(now, "Payment reminders", "Nothing to notify: no account is overdue.")
	}
	return a.entry(now, "Payment reminders",
		fmt.Sprintf("Queued payment reminders for %d overdue account(s).", len(overdue)))
}

func (a *Agent) dueDateEntry(now time.Time, structures []Structure) AgentRun {
	var pastDue int
	for _, s := range structures {
		if s.IsActive && s.DueEndOfDay().Before(now) {
			pastDue++
		}
	}
	if pastDue == 0 {
		return a.entry(now, "Due date sweep", "No active fee structure is past its due date.")
	}
	return a.entry(now, "Due date sweep",
		fmt.Sprintf("%d active fee structure(s) are past their due date.", pastDue))
}

func (a *Agent) categoryEntry(now time.Time, categories []Category) AgentRun {
	var inactive []string
	for _, cat := range categories {
		if !cat.IsActive {
			inactive = append(inactive, cat.Name)
		}
	}
	if len(inactive) == 0 {
		return a.entry(now, "Category audit", "No inactive fee categories.")
	}
	return a.entry(now, "Category audit",
		fmt.Sprintf("Inactive fee categories: %s.", strings.Join(inactive, ", ")))
}

func (a *Agent) append(ctx context.Context, entries []AgentRun) error {
	if err := a.svc.repo.CreateAgentRuns(ctx, entries...); err != nil {
		return errors.Wrap(err, "appending agent log")
	}
	if err := a.svc.repo.PruneAgentRuns(ctx, a.conf.Fees.RunLogRetention); err != nil {
		return errors.Wrap(err, "pruning agent log")
	}
	return nil
}

// fail records a FAILED run entry; the pass's partial account updates are kept.
func (a *Agent) fail(ctx context.Context, now time.Time, cause error) {
	entry := a.entry(now, "Reconciliation pass failed", cause.Error())
	entry.Status = RunFailed
	if err := a.append(ctx, []AgentRun{entry}); err != nil {
		a.logger.Error(fmt.Sprintf("recording failed run: %v", err), err)
	}
}

func (a *Agent) sendReminders(overdue []Account) {
	msgs := make([]*core.EmailMessage, 0, len(overdue))
	for _, acct := range overdue {
		if !acct.Email.Valid {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: acct.StudentName, Address: acct.Email.String}},
			Subject: "Fee payment overdue",
			BodyStr: fmt.Sprintf(
				"Dear %s,\n\nYour fee account %s is overdue. Outstanding amount: %s.\n"+
					"Please settle it at the earliest to avoid further late fines.",
				acct.StudentName, strings.ToUpper(acct.RegNo), acct.Due.StringFixed(2)),
		})
	}
	if len(msgs) > 0 {
		a.mailSvc.SendMessages(msgs...)
	}
}
