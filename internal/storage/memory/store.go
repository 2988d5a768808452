package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careops/billing-service/internal/interfaces"
	"github.com/careops/billing-service/internal/models"
)

// Store is an in-memory implementation of interfaces.BillStore. It backs
// local runs without a database and the test suite. A single mutex makes the
// appointment-uniqueness check and the insert one critical section, so the
// one-bill-per-appointment invariant holds under concurrent creates.
type Store struct {
	mu            sync.Mutex
	bills         map[int64]models.Bill
	byAppointment map[int64]int64 // appointment id -> bill id
	order         []int64         // bill ids in insertion order
	nextID        int64
	lastCreated   time.Time
}

// NewStore returns an empty in-memory bill store.
func NewStore() *Store {
	return &Store{
		bills:         make(map[int64]models.Bill),
		byAppointment: make(map[int64]int64),
	}
}

func (s *Store) CreateBill(_ context.Context, bill models.Bill) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAppointment[bill.AppointmentID]; exists {
		return models.Bill{}, models.ErrDuplicateAppointment
	}

	s.nextID++
	bill.ID = s.nextID

	// Keep CreatedAt strictly increasing so list ordering is deterministic
	// even when inserts land on the same clock tick.
	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = now
	bill.CreatedAt = now

	s.bills[bill.ID] = bill
	s.byAppointment[bill.AppointmentID] = bill.ID
	s.order = append(s.order, bill.ID)
	return bill, nil
}

func (s *Store) GetBill(_ context.Context, id int64) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[id]
	if !ok {
		return models.Bill{}, models.ErrBillNotFound
	}
	return bill, nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, apply func(models.Bill) (models.BillStatus, error)) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[id]
	if !ok {
		return models.Bill{}, models.ErrBillNotFound
	}

	next, err := apply(bill)
	if err != nil {
		return models.Bill{}, err
	}

	bill.Status = next
	s.bills[id] = bill
	return bill, nil
}

func (s *Store) ListBills(_ context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.Bill, 0, len(s.order))
	for _, id := range s.order {
		bill := s.bills[id]
		if filter.PatientID != nil && bill.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != nil && bill.Status != *filter.Status {
			continue
		}
		matched = append(matched, bill)
	}

	// Newest first; the stable sort keeps insertion order on equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Skip >= total {
		return []models.Bill{}, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

var _ interfaces.BillStore = (*Store)(nil)
