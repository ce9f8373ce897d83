package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/events"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []events.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Type, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func (b *recordingBus) count(t events.Type) int {
	n := 0
	for _, got := range b.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (b *recordingBus) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type fixture struct {
	ctx        context.Context
	st         *store.MemoryStore
	bus        *recordingBus
	clock      *fakeClock
	policy     *PolicyProvider
	loans      *LoanService
	extensions *ExtensionService
	returns    *ReturnService
	fines      *FineService
	catalog    *CatalogService

	reader    models.Principal
	other     models.Principal
	librarian models.Principal
	admin     models.Principal
}

var baseTime = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		st:    store.NewMemoryStore(),
		bus:   &recordingBus{},
		clock: &fakeClock{now: baseTime},
	}
	opts := []Option{WithClock(f.clock.Now), WithRetry(WithBaseDelay(0))}
	f.policy = NewPolicyProvider(f.st, DefaultPolicy())
	f.returns = NewReturnService(f.st, f.bus, f.policy, opts...)
	f.extensions = NewExtensionService(f.st, f.bus, opts...)
	f.loans = NewLoanService(f.st, f.bus, f.returns, f.extensions, opts...)
	f.fines = NewFineService(f.st, f.bus, opts...)
	f.catalog = NewCatalogService(f.st, nil, opts...)

	f.reader = f.addUser(t, "reader@uni.test", models.RoleUser)
	f.other = f.addUser(t, "other@uni.test", models.RoleUser)
	f.librarian = f.addUser(t, "librarian@uni.test", models.RoleLibrarian)
	f.admin = f.addUser(t, "admin@uni.test", models.RoleAdmin)
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role models.Role) models.Principal {
	t.Helper()
	u := &models.User{Email: email, Role: role, CreatedAt: baseTime}
	require.NoError(t, f.st.CreateUser(f.ctx, u))
	return models.Principal{UserID: u.ID, Email: email, Role: role}
}

func (f *fixture) addBook(t *testing.T, title string, qty int, price int64) *models.Book {
	t.Helper()
	b := &models.Book{
		Title:             title,
		Price:             price,
		QuantityTotal:     qty,
		QuantityAvailable: qty,
		Status:            models.BookActive,
		CreatedAt:         f.clock.Now(),
	}
	require.NoError(t, f.st.InsertBook(f.ctx, b))
	return b
}

func (f *fixture) book(t *testing.T, b *models.Book) *models.Book {
	t.Helper()
	got, err := f.st.BookByID(f.ctx, b.ID)
	require.NoError(t, err)
	return got
}

// borrowed creates a BORROWED loan through the librarian fast path.
func (f *fixture) borrowed(t *testing.T, due time.Time, items ...ItemRequest) *models.Loan {
	t.Helper()
	loan, err := f.loans.CreateByLibrarian(f.ctx, f.librarian, CreateLoanInput{
		ReaderUserID: f.reader.UserID,
		DueDate:      due,
		Items:        items,
	})
	require.NoError(t, err)
	return loan
}

// loanServiceOn builds a loan service over st, sharing the fixture's clock, bus and subsystems.
func (f *fixture) loanServiceOn(st Store) *LoanService {
	return NewLoanService(st, f.bus, f.returns, f.extensions, WithClock(f.clock.Now), WithRetry(WithBaseDelay(0)))
}

// faultyStore fails selected calls on top of the memory store.
type faultyStore struct {
	*store.MemoryStore
	duplicateCodes int
	failStockFor   primitive.ObjectID
	codes          []string
}

func (s *faultyStore) InsertLoan(ctx context.Context, loan *models.Loan) error {
	s.codes = append(s.codes, loan.Code)
	if s.duplicateCodes > 0 {
		s.duplicateCodes--
		return store.ErrDuplicate
	}
	return s.MemoryStore.InsertLoan(ctx, loan)
}

func (s *faultyStore) AdjustAvailability(ctx context.Context, id primitive.ObjectID, delta int) (*models.Book, error) {
	if id == s.failStockFor {
		return nil, store.ErrStockConflict
	}
	return s.MemoryStore.AdjustAvailability(ctx, id, delta)
}

func requireCode(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	require.Error(t, err)
	e := AsError(err)
	require.Equal(t, kind, e.Kind, "kind of %v", err)
	require.Equal(t, code, e.Code, "code of %v", err)
}
