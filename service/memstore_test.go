package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"powerball/events"
	"powerball/models"
	"powerball/source"
)

// memStore is an in-memory draw store with unit of work support
type memStore struct {
	mu     sync.Mutex
	draws  map[int]models.Draw
	bus    *events.Bus
	failOn map[int]error // upsert of these draw numbers fails
}

func newMemStore() *memStore {
	return &memStore{
		draws:  make(map[int]models.Draw),
		bus:    events.NewBus(),
		failOn: make(map[int]error),
	}
}

func (s *memStore) Create() UnitOfWork {
	return &memUnitOfWork{store: s, bus: events.NewTransactionalBus(s.bus)}
}

func (s *memStore) seed(draws ...*models.Draw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range draws {
		s.draws[d.DrawNumber] = *d
	}
}

func (s *memStore) snapshot() map[int]models.Draw {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]models.Draw, len(s.draws))
	for k, v := range s.draws {
		out[k] = v
	}
	return out
}

func (s *memStore) Upsert(ctx context.Context, draw *models.Draw) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failOn[draw.DrawNumber]; err != nil {
		return UpsertUnchanged, err
	}

	existing, ok := s.draws[draw.DrawNumber]
	if !ok {
		d := *draw
		d.CreatedAt = time.Now()
		d.UpdatedAt = d.CreatedAt
		s.draws[draw.DrawNumber] = d
		return UpsertInserted, nil
	}
	if existing.SameContent(draw) {
		return UpsertUnchanged, nil
	}
	d := *draw
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now()
	s.draws[draw.DrawNumber] = d
	return UpsertUpdated, nil
}

func (s *memStore) GetByNumber(ctx context.Context, drawNumber int) (*models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.draws[drawNumber]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *memStore) GetRecent(ctx context.Context, limit int) ([]*models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Draw, 0, len(s.draws))
	for _, d := range s.draws {
		out = append(out, &d)
	}
	slices.SortFunc(out, func(a, b *models.Draw) int {
		if c := b.DrawDate.Compare(a.DrawDate); c != 0 {
			return c
		}
		return b.DrawNumber - a.DrawNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetLatest(ctx context.Context) (*models.Draw, error) {
	recent, err := s.GetRecent(ctx, 1)
	if err != nil || len(recent) == 0 {
		return nil, err
	}
	return recent[0], nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.draws), nil
}

func (s *memStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.draws))
	s.draws = make(map[int]models.Draw)
	return n, nil
}

// memUnitOfWork writes straight through and restores the prior state on rollback
type memUnitOfWork struct {
	store  *memStore
	bus    *events.TransactionalBus
	undo   map[int]models.Draw
	active bool
}

func (u *memUnitOfWork) Begin(ctx context.Context) error {
	u.undo = u.store.snapshot()
	u.active = true
	return nil
}

func (u *memUnitOfWork) Commit() error {
	u.active = false
	u.bus.Flush(context.Background())
	return nil
}

func (u *memUnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	u.store.mu.Lock()
	u.store.draws = u.undo
	u.store.mu.Unlock()
	u.active = false
	u.bus.Discard()
	return nil
}

func (u *memUnitOfWork) DrawRepository() DrawRepository { return u.store }

func (u *memUnitOfWork) EventBus() events.Publisher { return u.bus }

// fakeSource serves canned entries per year
type fakeSource struct {
	mu      sync.Mutex
	years   map[int][]source.RawEntry
	fail    map[int]error
	calls   []int
	started chan int      // receives the year of each fetch when set
	block   chan struct{} // fetches wait on it when set
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		years: make(map[int][]source.RawEntry),
		fail:  make(map[int]error),
	}
}

func (f *fakeSource) FetchYear(ctx context.Context, year int) (*source.FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, year)
	started, block := f.started, f.block
	entries, err := f.years[year], f.fail[year]
	f.mu.Unlock()

	if started != nil {
		started <- year
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, &source.FetchError{Year: year, APIErr: err, HTMLErr: err}
	}
	return source.NewFetchResult(models.SourceAPI, "https://feed.test", entries), nil
}

func (f *fakeSource) FetchLatest(ctx context.Context) (*source.FetchResult, error) {
	return source.NewFetchResult(models.SourceHTML, "https://feed.test/latest", nil), nil
}

func (f *fakeSource) called() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func apiEntry(number int, date string, main []int, powerball int) source.APIEntry {
	return source.APIEntry{
		DrawNumber:       number,
		DrawDate:         date + "T00:00:00",
		PrimaryNumbers:   main,
		SecondaryNumbers: []int{powerball},
		URL:              "https://feed.test",
	}
}

func mustDraw(number int, date time.Time, main []int, powerball int) *models.Draw {
	d, err := models.NewDraw(number, date, main, powerball, models.SourceAPI, "")
	if err != nil {
		panic(err)
	}
	return d
}
