package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Gateway delivers a formatted message to a member through an external
// messaging service. It is a black box: no retry or formatting logic here.
type Gateway interface {
	Send(ctx context.Context, destination, credential, message string) error
}

// Ledger is the slice of the ledger engine the scheduler reads and writes
type Ledger interface {
	OpenCommitments(ctx context.Context) ([]models.Commitment, error)
	OpenCommitmentsDueBy(ctx context.Context, by time.Time) ([]models.Commitment, error)
	CommitmentByID(ctx context.Context, id int64) (*models.Commitment, error)
	MemberByID(ctx context.Context, id int64) (*models.Member, error)
	HasReminderSince(ctx context.Context, commitmentID int64, since time.Time) (bool, error)
	RecordNotification(ctx context.Context, rec *models.NotificationRecord) error
}

// Options configures the scheduler. Zero values fall back to defaults:
// 24h period, 7-day due-date window, one retry for manual sends.
type Options struct {
	Period  time.Duration
	Window  time.Duration
	Retries int
	Now     func() time.Time
}

// Scheduler runs the periodic reminder job and serves manual notification
// triggers. The tick is not reentrant: overlapping runs are detected and
// skipped.
type Scheduler struct {
	ledger  Ledger
	gateway Gateway
	log     *logrus.Logger
	now     func() time.Time
	period  time.Duration
	window  time.Duration
	retries int

	mu       sync.Mutex
	running  bool
	lastTick time.Time

	cron *cron.Cron
}

// New initializes a new scheduler
func New(ledger Ledger, gateway Gateway, log *logrus.Logger, opts Options) *Scheduler {
	if opts.Period <= 0 {
		opts.Period = 24 * time.Hour
	}
	if opts.Window <= 0 {
		opts.Window = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		ledger:  ledger,
		gateway: gateway,
		log:     log,
		now:     opts.Now,
		period:  opts.Period,
		window:  opts.Window,
		retries: opts.Retries,
	}
}

// Start registers the recurring reminder job and starts its timer
func (s *Scheduler) Start() {
	s.cron = cron.New()
	s.cron.Schedule(cron.Every(s.period), cron.FuncJob(func() {
		s.RunPeriodicTick(context.Background())
	}))
	s.cron.Start()
	s.log.Infof("Reminder scheduler started (period %s, due-date window %s)", s.period, s.window)
}

// Stop halts the recurring job and waits for a running tick to finish
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.log.Info("Reminder scheduler stopped")
}

// RunPeriodicTick scans open commitments approaching their due date and
// notifies each member at most once per period. Returns the number of
// notification attempts. The tick never propagates per-commitment errors;
// they are recorded or logged and the scan continues.
func (s *Scheduler) RunPeriodicTick(ctx context.Context) int {
	if !s.tryBegin() {
		s.log.Warn("Reminder tick skipped: previous tick still running")
		return 0
	}
	defer s.end()

	now := s.now()
	periodStart := now.Truncate(s.period)

	candidates, err := s.ledger.OpenCommitmentsDueBy(ctx, now.Add(s.window))
	if err != nil {
		s.log.Errorf("Reminder tick aborted: %v", err)
		return 0
	}

	attempts := 0
	for i := range candidates {
		c := &candidates[i]
		notified, err := s.ledger.HasReminderSince(ctx, c.ID, periodStart)
		if err != nil {
			s.log.Errorf("Reminder check failed for commitment %d: %v", c.ID, err)
			continue
		}
		if notified {
			continue
		}
		s.notify(ctx, c, models.TriggerAutomatic)
		attempts++
	}

	s.mu.Lock()
	s.lastTick = now
	s.mu.Unlock()

	s.log.Infof("Reminder tick finished: %d notification(s) attempted", attempts)
	return attempts
}

// NotifyOne sends a reminder for a single commitment on demand. The
// per-period guard does not apply: an explicit request always re-sends.
func (s *Scheduler) NotifyOne(ctx context.Context, commitmentID int64) (*models.NotificationRecord, error) {
	c, err := s.ledger.CommitmentByID(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	rec := s.notify(ctx, c, models.TriggerManual)
	if rec == nil {
		return nil, fmt.Errorf("failed to record notification for commitment %d", commitmentID)
	}
	return rec, nil
}

// NotifyAllUnsettled messages every open commitment regardless of due-date
// proximity or prior reminders. Individual failures are recorded and the
// batch continues; the recorded attempt count is returned.
func (s *Scheduler) NotifyAllUnsettled(ctx context.Context) (int, error) {
	open, err := s.ledger.OpenCommitments(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range open {
		if s.notify(ctx, &open[i], models.TriggerManual) != nil {
			count++
		}
	}

	s.log.Infof("Bulk reminder finished: %d notification(s) attempted", count)
	return count, nil
}

// ConfirmPayment messages the member that a payment was recorded against
// their commitment, with the updated balance. The outcome joins the audit
// trail like any reminder; a gateway failure never unwinds the payment.
func (s *Scheduler) ConfirmPayment(ctx context.Context, commitmentID int64, amount decimal.Decimal) (*models.NotificationRecord, error) {
	c, err := s.ledger.CommitmentByID(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	rec := s.attempt(ctx, c, models.TriggerPayment, func(c *models.Commitment, m *models.Member) string {
		return s.buildPaymentMessage(c, m, amount)
	})
	if rec == nil {
		return nil, fmt.Errorf("failed to record payment confirmation for commitment %d", commitmentID)
	}
	return rec, nil
}

// WelcomeMember greets a newly registered member with their assigned code.
// No commitment exists yet, so there is no audit record to append; members
// without a messaging credential are silently skipped.
func (s *Scheduler) WelcomeMember(ctx context.Context, m *models.Member) error {
	if !m.CanReceiveMessages() {
		s.log.Infof("Welcome message for member %s skipped: no messaging credential", m.Code)
		return nil
	}
	msg := s.buildWelcomeMessage(m)
	if err := s.gateway.Send(ctx, m.Phone, m.APIKey, msg); err != nil {
		s.log.Errorf("Failed to send welcome message to %s: %v", m.Phone, err)
		return err
	}
	s.log.Infof("Welcome message sent to member %s", m.Code)
	return nil
}

// LastTick reports when the previous periodic run completed
func (s *Scheduler) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

func (s *Scheduler) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) notify(ctx context.Context, c *models.Commitment, trigger models.NotificationTrigger) *models.NotificationRecord {
	return s.attempt(ctx, c, trigger, s.buildMessage)
}

// attempt builds the message, dispatches it, and appends the outcome to the
// audit trail. Returns nil only when the record itself could not be
// persisted; that aborts this commitment's attempt, never the batch.
func (s *Scheduler) attempt(ctx context.Context, c *models.Commitment, trigger models.NotificationTrigger, build func(*models.Commitment, *models.Member) string) *models.NotificationRecord {
	rec := &models.NotificationRecord{
		CommitmentID: c.ID,
		MemberID:     c.MemberID,
		Trigger:      trigger,
		SentAt:       s.now(),
	}

	member, err := s.ledger.MemberByID(ctx, c.MemberID)
	switch {
	case err != nil:
		s.log.Errorf("Notification for commitment %d: member lookup failed: %v", c.ID, err)
		rec.Outcome = models.OutcomeFailed
	case !member.CanReceiveMessages():
		rec.Message = build(c, member)
		rec.Outcome = models.OutcomeSkippedNoCredential
		s.log.Infof("Notification for commitment %d skipped: member %s has no messaging credential", c.ID, member.Code)
	default:
		rec.Message = build(c, member)
		if err := s.dispatch(ctx, member, rec.Message, trigger); err != nil {
			s.log.Errorf("Failed to send reminder for commitment %d to %s: %v", c.ID, member.Phone, err)
			rec.Outcome = models.OutcomeFailed
		} else {
			rec.Outcome = models.OutcomeSent
		}
	}

	if err := s.ledger.RecordNotification(ctx, rec); err != nil {
		s.log.Errorf("Failed to record notification for commitment %d: %v", c.ID, err)
		return nil
	}
	return rec
}

// dispatch calls the gateway. Manual triggers get a bounded number of
// retries on failure; the automatic tick sends once and records the result.
func (s *Scheduler) dispatch(ctx context.Context, m *models.Member, message string, trigger models.NotificationTrigger) error {
	attempts := 1
	if trigger == models.TriggerManual {
		attempts += s.retries
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.gateway.Send(ctx, m.Phone, m.APIKey, message); err == nil {
			return nil
		}
	}
	return err
}

// buildMessage renders the fixed reminder template: amounts with two decimal
// places, the due date in day/month/year order.
func (s *Scheduler) buildMessage(c *models.Commitment, m *models.Member) string {
	return fmt.Sprintf(
		"PLEDGE REMINDER\nDear %s, you pledged %s$ to settle by %s.\nPaid so far: %s$. Remaining: %s$.\nThank you for your contribution!",
		m.DisplayName(),
		c.Total.StringFixed(2),
		c.DueDate.Format("02/01/2006"),
		c.AmountPaid.StringFixed(2),
		c.Remaining().StringFixed(2),
	)
}

// buildPaymentMessage renders the payment-confirmation template with the
// balance after the payment was applied.
func (s *Scheduler) buildPaymentMessage(c *models.Commitment, m *models.Member, amount decimal.Decimal) string {
	return fmt.Sprintf(
		"PAYMENT RECEIVED\nDear %s, your payment of %s$ was recorded against your pledge due %s.\nPaid so far: %s$. Remaining: %s$.\nThank you for your contribution!",
		m.DisplayName(),
		amount.StringFixed(2),
		c.DueDate.Format("02/01/2006"),
		c.AmountPaid.StringFixed(2),
		c.Remaining().StringFixed(2),
	)
}

func (s *Scheduler) buildWelcomeMessage(m *models.Member) string {
	return fmt.Sprintf(
		"Welcome %s!\nYour registration has been recorded under member code %s.",
		m.DisplayName(),
		m.Code,
	)
}
