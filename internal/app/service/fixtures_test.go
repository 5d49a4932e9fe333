package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/db"
	redisclient "github.com/brroMonta/gifting/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testOwner = "owner-1"

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots map[string][]*model.PublicGiftMap
	revoked   []string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{snapshots: make(map[string][]*model.PublicGiftMap)}
}

func (p *recordingPublisher) PublishSnapshot(token string, view *model.PublicGiftMap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[token] = append(p.snapshots[token], view)
}

func (p *recordingPublisher) PublishRevoked(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, token)
}

func (p *recordingPublisher) snapshotCount(token string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots[token])
}

func (p *recordingPublisher) lastSnapshot(token string) *model.PublicGiftMap {
	p.mu.Lock()
	defer p.mu.Unlock()
	views := p.snapshots[token]
	if len(views) == 0 {
		return nil
	}
	return views[len(views)-1]
}

func (p *recordingPublisher) revokedTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

type giftingFixture struct {
	db          *gorm.DB
	mr          *miniredis.Miniredis
	cache       *redisclient.Client
	publisher   *recordingPublisher
	notifier    *ProjectionNotifier
	giftMapRepo repository.GiftMapRepository
	sharedRepo  repository.SharedGiftMapRepository
	people      PersonService
	giftMaps    GiftMapService
	shared      SharedGiftMapService
	reconcile   ReconcileService
}

func setupGifting(t *testing.T) *giftingFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache := redisclient.NewFromClient(rdb)

	publisher := newRecordingPublisher()
	notifier := NewProjectionNotifier(cache, time.Minute, publisher)

	personRepo := repository.NewPersonRepository(testDB)
	giftMapRepo := repository.NewGiftMapRepository(testDB)
	sharedRepo := repository.NewSharedGiftMapRepository(testDB)

	people := NewPersonService(testDB, personRepo, giftMapRepo, sharedRepo, notifier)

	return &giftingFixture{
		db:          testDB,
		mr:          mr,
		cache:       cache,
		publisher:   publisher,
		notifier:    notifier,
		giftMapRepo: giftMapRepo,
		sharedRepo:  sharedRepo,
		people:      people,
		giftMaps:    NewGiftMapService(testDB, giftMapRepo, sharedRepo, people, notifier, 8),
		shared:      NewSharedGiftMapService(testDB, giftMapRepo, sharedRepo, notifier, 8),
		reconcile:   NewReconcileService(testDB, giftMapRepo, sharedRepo, notifier),
	}
}

// createPerson adds a person and lazily creates their gift map.
func (f *giftingFixture) createPerson(t *testing.T, name string) string {
	ctx := context.Background()
	person, err := f.people.Create(ctx, testOwner, PersonInput{Name: name})
	require.NoError(t, err)

	giftMap, err := f.giftMaps.GetOrCreate(ctx, testOwner, person.ID)
	require.NoError(t, err)
	require.Equal(t, name, giftMap.PersonName)
	return person.ID
}

func (f *giftingFixture) addItems(t *testing.T, personID string, names ...string) []string {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := f.giftMaps.AddItem(context.Background(), testOwner, personID, ItemInput{Name: name})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func (f *giftingFixture) countProjections(t *testing.T) int64 {
	var count int64
	require.NoError(t, f.db.Model(&model.SharedGiftMap{}).Count(&count).Error)
	return count
}

// assertConverged checks the owner copy and the stored projection hold the same items.
func (f *giftingFixture) assertConverged(t *testing.T, personID, token string) {
	t.Helper()
	ctx := context.Background()

	owner, err := f.giftMaps.Get(ctx, testOwner, personID)
	require.NoError(t, err)

	stored, err := f.sharedRepo.FindByToken(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, owner.Items, stored.Items.Sorted())
	assert.Equal(t, owner.PersonName, stored.PersonName)
	assertReservationInvariant(t, owner.Items)
	assertReservationInvariant(t, stored.Items)
}

func assertReservationInvariant(t *testing.T, items model.GiftMapItems) {
	t.Helper()
	for _, item := range items {
		assert.Equal(t, item.IsReserved, item.ReservedAt != nil, "item %s", item.Name)
	}
}

func findItem(t *testing.T, items model.GiftMapItems, id string) model.GiftMapItem {
	t.Helper()
	idx := items.IndexOf(id)
	require.GreaterOrEqual(t, idx, 0, "item %s not found", id)
	return items[idx]
}

// conflictingGiftMapRepo reports a version conflict for the first N
// version-guarded writes.
type conflictingGiftMapRepo struct {
	repository.GiftMapRepository
	remaining *int32
	calls     *int32
}

func newConflictingGiftMapRepo(inner repository.GiftMapRepository, conflicts int32) *conflictingGiftMapRepo {
	remaining := conflicts
	var calls int32
	return &conflictingGiftMapRepo{GiftMapRepository: inner, remaining: &remaining, calls: &calls}
}

func (r *conflictingGiftMapRepo) WithTx(tx *gorm.DB) repository.GiftMapRepository {
	return &conflictingGiftMapRepo{
		GiftMapRepository: r.GiftMapRepository.WithTx(tx),
		remaining:         r.remaining,
		calls:             r.calls,
	}
}

func (r *conflictingGiftMapRepo) UpdateVersioned(ctx context.Context, giftMap *model.GiftMap) error {
	atomic.AddInt32(r.calls, 1)
	if atomic.AddInt32(r.remaining, -1) >= 0 {
		return repository.ErrVersionConflict
	}
	return r.GiftMapRepository.UpdateVersioned(ctx, giftMap)
}
