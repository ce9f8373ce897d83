package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps every collection in-process. It implements the same contract as DB
// and is used by tests and local runs without MongoDB. Transactions are serialized and
// roll back by restoring a snapshot.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	books         map[primitive.ObjectID]models.Book
	users         map[primitive.ObjectID]models.User
	loans         map[primitive.ObjectID]models.Loan
	extensions    map[primitive.ObjectID]models.LoanExtension
	returns       map[primitive.ObjectID]models.Return
	fines         map[primitive.ObjectID]models.Fine
	policies      map[primitive.ObjectID]models.FinePolicy
	notifications map[primitive.ObjectID]models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:         map[primitive.ObjectID]models.Book{},
		users:         map[primitive.ObjectID]models.User{},
		loans:         map[primitive.ObjectID]models.Loan{},
		extensions:    map[primitive.ObjectID]models.LoanExtension{},
		returns:       map[primitive.ObjectID]models.Return{},
		fines:         map[primitive.ObjectID]models.Fine{},
		policies:      map[primitive.ObjectID]models.FinePolicy{},
		notifications: map[primitive.ObjectID]models.Notification{},
	}
}

type memTxKey struct{}

type memSnapshot struct {
	books         map[primitive.ObjectID]models.Book
	users         map[primitive.ObjectID]models.User
	loans         map[primitive.ObjectID]models.Loan
	extensions    map[primitive.ObjectID]models.LoanExtension
	returns       map[primitive.ObjectID]models.Return
	fines         map[primitive.ObjectID]models.Fine
	policies      map[primitive.ObjectID]models.FinePolicy
	notifications map[primitive.ObjectID]models.Notification
}

func copyMap[T any](m map[primitive.ObjectID]T, clone func(T) T) map[primitive.ObjectID]T {
	out := make(map[primitive.ObjectID]T, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

func same[T any](v T) T { return v }

func (m *MemoryStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		books:         copyMap(m.books, same[models.Book]),
		users:         copyMap(m.users, same[models.User]),
		loans:         copyMap(m.loans, cloneLoan),
		extensions:    copyMap(m.extensions, same[models.LoanExtension]),
		returns:       copyMap(m.returns, cloneReturn),
		fines:         copyMap(m.fines, same[models.Fine]),
		policies:      copyMap(m.policies, same[models.FinePolicy]),
		notifications: copyMap(m.notifications, same[models.Notification]),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books, m.users, m.loans = s.books, s.users, s.loans
	m.extensions, m.returns, m.fines = s.extensions, s.returns, s.fines
	m.policies, m.notifications = s.policies, s.notifications
}

// WithTransaction runs fn with exclusive access to transactional writes. Any error
// restores the state captured before fn started.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func cloneLoan(l models.Loan) models.Loan {
	l.Items = append([]models.LoanItem(nil), l.Items...)
	return l
}

func cloneReturn(r models.Return) models.Return {
	r.Items = append([]models.ReturnItem(nil), r.Items...)
	return r
}

func paginate[T any](items []T, page, limit int) []T {
	page, limit = NormalizePage(page, limit)
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// books

func (m *MemoryStore) InsertBook(_ context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	if _, ok := m.books[book.ID]; ok {
		return ErrDuplicate
	}
	m.books[book.ID] = *book
	return nil
}

func (m *MemoryStore) BookByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) BooksByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Book{}
	for _, id := range ids {
		if b, ok := m.books[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListBooks(_ context.Context, f models.BookFilter) ([]models.Book, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Book{}
	q := strings.ToLower(f.Query)
	for _, b := range m.books {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (m *MemoryStore) AdjustStock(_ context.Context, id primitive.ObjectID, totalDelta, availableDelta int) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	total := b.QuantityTotal + totalDelta
	avail := b.QuantityAvailable + availableDelta
	if total < 0 || avail < 0 || avail > total {
		return nil, ErrStockConflict
	}
	b.QuantityTotal, b.QuantityAvailable = total, avail
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return &b, nil
}

func (m *MemoryStore) AdjustAvailability(ctx context.Context, id primitive.ObjectID, delta int) (*models.Book, error) {
	return m.AdjustStock(ctx, id, 0, delta)
}

func (m *MemoryStore) SetBookStatus(_ context.Context, id primitive.ObjectID, status models.BookStatus) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return &b, nil
}

// users

func (m *MemoryStore) UsersCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) ListUsers(_ context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// loans

func (m *MemoryStore) InsertLoan(_ context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	for _, l := range m.loans {
		if l.Code == loan.Code {
			return ErrDuplicate
		}
	}
	m.loans[loan.ID] = cloneLoan(*loan)
	return nil
}

func (m *MemoryStore) LoanByID(_ context.Context, id primitive.ObjectID) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	l = cloneLoan(l)
	return &l, nil
}

func (m *MemoryStore) UpdateLoan(_ context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.loans[loan.ID]
	if !ok || current.Version != loan.Version {
		return ErrVersionConflict
	}
	loan.Version++
	loan.UpdatedAt = time.Now().UTC()
	m.loans[loan.ID] = cloneLoan(*loan)
	return nil
}

func matchesLoan(l models.Loan, f models.LoanFilter) bool {
	if f.ReaderUserID != nil && l.ReaderUserID != *f.ReaderUserID {
		return false
	}
	switch f.Status {
	case "":
		return true
	case models.LoanOverdue:
		now := f.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		return l.IsOverdue(now)
	default:
		return l.Status == f.Status
	}
}

func (m *MemoryStore) ListLoans(_ context.Context, f models.LoanFilter) ([]models.Loan, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Loan{}
	for _, l := range m.loans {
		if matchesLoan(l, f) {
			out = append(out, cloneLoan(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (m *MemoryStore) ActiveLoansDueBetween(_ context.Context, from, to time.Time) ([]models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Loan{}
	for _, l := range m.loans {
		if !l.Status.IsActive() || !l.DueDate.Before(to) {
			continue
		}
		if !from.IsZero() && l.DueDate.Before(from) {
			continue
		}
		out = append(out, cloneLoan(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// extensions

func (m *MemoryStore) InsertExtension(_ context.Context, ext *models.LoanExtension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ext.Status == models.ExtensionPending {
		for _, e := range m.extensions {
			if e.LoanID == ext.LoanID && e.Status == models.ExtensionPending {
				return ErrDuplicate
			}
		}
	}
	if ext.ID.IsZero() {
		ext.ID = primitive.NewObjectID()
	}
	m.extensions[ext.ID] = *ext
	return nil
}

func (m *MemoryStore) ExtensionByID(_ context.Context, id primitive.ObjectID) (*models.LoanExtension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.extensions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryStore) PendingExtensionForLoan(_ context.Context, loanID primitive.ObjectID) (*models.LoanExtension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.extensions {
		if e.LoanID == loanID && e.Status == models.ExtensionPending {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ExtensionsByLoan(_ context.Context, loanID primitive.ObjectID) ([]models.LoanExtension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LoanExtension{}
	for _, e := range m.extensions {
		if e.LoanID == loanID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateExtensionReview(_ context.Context, ext *models.LoanExtension, from models.ExtensionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.extensions[ext.ID]
	if !ok || current.Status != from {
		return ErrVersionConflict
	}
	m.extensions[ext.ID] = *ext
	return nil
}

// returns and fines

func (m *MemoryStore) InsertReturn(_ context.Context, ret *models.Return) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ret.ID.IsZero() {
		ret.ID = primitive.NewObjectID()
	}
	ret.RecomputeTotal()
	m.returns[ret.ID] = cloneReturn(*ret)
	return nil
}

func (m *MemoryStore) ReturnsByLoan(_ context.Context, loanID primitive.ObjectID) ([]models.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Return{}
	for _, r := range m.returns {
		if r.LoanID == loanID {
			out = append(out, cloneReturn(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReturnDate.Before(out[j].ReturnDate) })
	return out, nil
}

func (m *MemoryStore) InsertFine(_ context.Context, fine *models.Fine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fine.ID.IsZero() {
		fine.ID = primitive.NewObjectID()
	}
	m.fines[fine.ID] = *fine
	return nil
}

func (m *MemoryStore) FineByID(_ context.Context, id primitive.ObjectID) (*models.Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *MemoryStore) ListFines(_ context.Context, f models.FineFilter) ([]models.Fine, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Fine{}
	for _, fine := range m.fines {
		if f.UserID != nil && fine.UserID != *f.UserID {
			continue
		}
		if f.LoanID != nil && fine.LoanID != *f.LoanID {
			continue
		}
		if f.Status != "" && fine.Status != f.Status {
			continue
		}
		out = append(out, fine)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (m *MemoryStore) OutstandingFines(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, f := range m.fines {
		if f.UserID == userID && f.Status == models.FinePending {
			total += f.Amount
		}
	}
	return total, nil
}

func (m *MemoryStore) UpdateFineSettlement(_ context.Context, fine *models.Fine, from models.FineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.fines[fine.ID]
	if !ok || current.Status != from {
		return ErrVersionConflict
	}
	m.fines[fine.ID] = *fine
	return nil
}

// policies

func (m *MemoryStore) ActivePolicy(_ context.Context) (*models.FinePolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.IsActive {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) EnsureActivePolicy(_ context.Context, defaults models.FinePolicy) (*models.FinePolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.IsActive {
			return &p, nil
		}
	}
	p := defaults
	p.ID = primitive.NewObjectID()
	p.IsActive = true
	p.CreatedAt = time.Now().UTC()
	m.policies[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) ReplaceActivePolicy(_ context.Context, p *models.FinePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, old := range m.policies {
		if old.IsActive {
			old.IsActive = false
			m.policies[id] = old
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.IsActive = true
	m.policies[p.ID] = *p
	return nil
}

// notifications

func (m *MemoryStore) InsertNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.EventID != "" {
		for _, existing := range m.notifications {
			if existing.EventID == n.EventID {
				return ErrDuplicate
			}
		}
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.notifications[n.ID] = *n
	return nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, userID primitive.ObjectID, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, limit), int64(len(out)), nil
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, userID, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}
