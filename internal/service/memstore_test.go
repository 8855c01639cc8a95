package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store used by the service and scheduler tests.
type memStore struct {
	mu            sync.Mutex
	members       map[int64]models.Member
	commitments   map[int64]models.Commitment
	payments      map[int64]models.Payment
	notifications []models.NotificationRecord
	nextID        int64
}

func newMemStore() *memStore {
	return &memStore{
		members:     make(map[int64]models.Member),
		commitments: make(map[int64]models.Commitment),
		payments:    make(map[int64]models.Payment),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) CreateMember(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.members[m.ID] = *m
	return nil
}

func (s *memStore) MemberByID(_ context.Context, id int64) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *memStore) ListMembers(_ context.Context) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []models.Member
	for _, m := range s.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID > members[j].ID })
	return members, nil
}

func (s *memStore) LastMemberID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last int64
	for id := range s.members {
		if id > last {
			last = id
		}
	}
	return last, nil
}

func (s *memStore) CreateCommitment(_ context.Context, c *models.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.commitments[c.ID] = *c
	return nil
}

func (s *memStore) CommitmentByID(_ context.Context, id int64) (*models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *memStore) CommitmentsByMember(_ context.Context, memberID int64) ([]models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var commitments []models.Commitment
	for _, c := range s.commitments {
		if c.MemberID == memberID {
			commitments = append(commitments, c)
		}
	}
	sort.Slice(commitments, func(i, j int) bool { return commitments[i].DueDate.Before(commitments[j].DueDate) })
	return commitments, nil
}

func (s *memStore) UpdateCommitment(_ context.Context, c *models.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commitments[c.ID]; !ok {
		return ErrNotFound
	}
	s.commitments[c.ID] = *c
	return nil
}

func (s *memStore) ListCommitments(_ context.Context) ([]models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var commitments []models.Commitment
	for _, c := range s.commitments {
		commitments = append(commitments, c)
	}
	sort.Slice(commitments, func(i, j int) bool { return commitments[i].DueDate.Before(commitments[j].DueDate) })
	return commitments, nil
}

func (s *memStore) OpenCommitments(ctx context.Context) ([]models.Commitment, error) {
	all, _ := s.ListCommitments(ctx)
	var open []models.Commitment
	for _, c := range all {
		if c.Status == models.StatusOpen {
			open = append(open, c)
		}
	}
	return open, nil
}

func (s *memStore) OpenCommitmentsDueBy(ctx context.Context, by time.Time) ([]models.Commitment, error) {
	open, _ := s.OpenCommitments(ctx)
	var due []models.Commitment
	for _, c := range open {
		if !c.DueDate.After(by) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (s *memStore) ApplyPayment(_ context.Context, p *models.Payment) (*models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[p.CommitmentID]
	if !ok {
		return nil, ErrNotFound
	}
	p.ID = s.id()
	s.payments[p.ID] = *p
	c.AmountPaid = c.AmountPaid.Add(p.Amount)
	c.Status = models.StatusFor(c.Total, c.AmountPaid)
	s.commitments[c.ID] = c
	return &c, nil
}

func (s *memStore) DeletePayment(_ context.Context, paymentID int64) (*models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.payments, paymentID)
	c := s.commitments[p.CommitmentID]
	c.AmountPaid = c.AmountPaid.Sub(p.Amount)
	c.Status = models.StatusFor(c.Total, c.AmountPaid)
	s.commitments[c.ID] = c
	return &c, nil
}

func (s *memStore) PaymentsByCommitment(_ context.Context, commitmentID int64) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payments []models.Payment
	for _, p := range s.payments {
		if p.CommitmentID == commitmentID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID > payments[j].ID })
	return payments, nil
}

func (s *memStore) RecentPaymentsByMember(ctx context.Context, memberID int64, limit int) ([]models.Payment, error) {
	s.mu.Lock()
	byCommitment := make(map[int64]bool)
	for _, c := range s.commitments {
		if c.MemberID == memberID {
			byCommitment[c.ID] = true
		}
	}
	var payments []models.Payment
	for _, p := range s.payments {
		if byCommitment[p.CommitmentID] {
			payments = append(payments, p)
		}
	}
	s.mu.Unlock()
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID > payments[j].ID })
	if len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (s *memStore) ListPayments(_ context.Context) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payments []models.Payment
	for _, p := range s.payments {
		payments = append(payments, p)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID > payments[j].ID })
	return payments, nil
}

func (s *memStore) AddNotification(_ context.Context, rec *models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.id()
	s.notifications = append(s.notifications, *rec)
	return nil
}

func (s *memStore) HasNotificationSince(_ context.Context, commitmentID int64, since time.Time, outcomes []models.NotificationOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.notifications {
		if rec.CommitmentID != commitmentID || rec.SentAt.Before(since) {
			continue
		}
		for _, o := range outcomes {
			if rec.Outcome == o {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memStore) NotificationsByCommitment(_ context.Context, commitmentID int64) ([]models.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.NotificationRecord
	for _, rec := range s.notifications {
		if rec.CommitmentID == commitmentID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *memStore) Stats(_ context.Context, since time.Time) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.Stats{
		TotalMembers:     len(s.members),
		TotalCommitments: len(s.commitments),
		AmountInWindow:   decimal.Zero,
	}
	for _, p := range s.payments {
		if !p.PaidAt.Before(since) {
			st.PaymentsInWindow++
			st.AmountInWindow = st.AmountInWindow.Add(p.Amount)
		}
	}
	return st, nil
}
