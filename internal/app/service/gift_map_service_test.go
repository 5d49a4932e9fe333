package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGiftMapService_ShareAndReserveScenario(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	alice := f.createPerson(t, "Alice")
	ids := f.addItems(t, alice, "Book", "Scarf")
	book, scarf := ids[0], ids[1]

	token, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.True(t, sharelink.ValidToken(token))

	view, err := f.shared.GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.PersonName)
	require.Len(t, view.Items, 2)
	for _, item := range view.Items {
		assert.False(t, item.IsReserved)
		assert.Nil(t, item.ReservedAt)
	}

	view, err = f.shared.Reserve(ctx, token, book)
	require.NoError(t, err)
	assert.True(t, findItem(t, view.Items, book).IsReserved)
	assert.False(t, findItem(t, view.Items, scarf).IsReserved)

	owner, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.True(t, findItem(t, owner.Items, book).IsReserved)
	assert.NotNil(t, findItem(t, owner.Items, book).ReservedAt)
	assert.False(t, findItem(t, owner.Items, scarf).IsReserved)
	f.assertConverged(t, alice, token)

	require.NoError(t, f.giftMaps.DisableSharing(ctx, testOwner, alice))
	_, err = f.shared.GetByToken(ctx, token)
	assert.ErrorIs(t, err, ErrSharedGiftMapNotFound)
}

func TestGiftMapService_OrderIsInsertionIndexWithGaps(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	alice := f.createPerson(t, "Alice")
	ids := f.addItems(t, alice, "Book", "Scarf", "Mug")

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	require.Len(t, giftMap.Items, 3)
	for i, item := range giftMap.Items {
		assert.Equal(t, i, item.Order)
		assert.False(t, item.IsReserved)
	}

	require.NoError(t, f.giftMaps.DeleteItem(ctx, testOwner, alice, ids[1]))

	giftMap, err = f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	require.Len(t, giftMap.Items, 2)
	assert.Equal(t, 0, giftMap.Items[0].Order)
	assert.Equal(t, "Book", giftMap.Items[0].Name)
	assert.Equal(t, 2, giftMap.Items[1].Order)
	assert.Equal(t, "Mug", giftMap.Items[1].Name)
}

func TestGiftMapService_OwnerMutationsResyncProjection(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	alice := f.createPerson(t, "Alice")
	token, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)
	f.assertConverged(t, alice, token)

	ids := f.addItems(t, alice, "Book")
	f.assertConverged(t, alice, token)

	newName := "Hardcover Book"
	notes := "signed copy"
	require.NoError(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, ids[0], ItemPatch{Name: &newName, Notes: &notes}))
	f.assertConverged(t, alice, token)

	more := f.addItems(t, alice, "Scarf")
	f.assertConverged(t, alice, token)

	require.NoError(t, f.giftMaps.DeleteItem(ctx, testOwner, alice, more[0]))
	f.assertConverged(t, alice, token)

	view, err := f.shared.GetByToken(ctx, token)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Hardcover Book", view.Items[0].Name)
	assert.Equal(t, "signed copy", view.Items[0].Notes)

	// Every committed change was pushed to live viewers.
	assert.Equal(t, 5, f.publisher.snapshotCount(token))
	assert.Equal(t, view.Items, f.publisher.lastSnapshot(token).Items)
}

func TestGiftMapService_UnsharedMutationsDoNotProject(t *testing.T) {
	f := setupGifting(t)
	alice := f.createPerson(t, "Alice")
	f.addItems(t, alice, "Book")

	assert.Equal(t, int64(0), f.countProjections(t))
}

func TestGiftMapService_EnableSharingIsIdempotent(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	alice := f.createPerson(t, "Alice")
	first, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)
	second, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.countProjections(t))

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.True(t, giftMap.IsShared)
	require.NotNil(t, giftMap.ShareToken)
	assert.Equal(t, first, *giftMap.ShareToken)
}

func TestGiftMapService_RevocationRotatesToken(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	alice := f.createPerson(t, "Alice")
	f.addItems(t, alice, "Book")

	oldToken, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)

	// Warm the cache so revocation has something to invalidate.
	_, err = f.shared.GetByToken(ctx, oldToken)
	require.NoError(t, err)

	require.NoError(t, f.giftMaps.DisableSharing(ctx, testOwner, alice))
	require.NoError(t, f.giftMaps.DisableSharing(ctx, testOwner, alice))

	_, err = f.shared.GetByToken(ctx, oldToken)
	assert.ErrorIs(t, err, ErrSharedGiftMapNotFound)
	assert.Equal(t, int64(0), f.countProjections(t))
	assert.Equal(t, []string{oldToken}, f.publisher.revokedTokens())

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.False(t, giftMap.IsShared)
	assert.Nil(t, giftMap.ShareToken)

	newToken, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)

	_, err = f.shared.GetByToken(ctx, oldToken)
	assert.ErrorIs(t, err, ErrSharedGiftMapNotFound)
	view, err := f.shared.GetByToken(ctx, newToken)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestGiftMapService_NotFoundSemantics(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	_, err := f.giftMaps.Get(ctx, testOwner, "nobody")
	assert.ErrorIs(t, err, ErrGiftMapNotFound)

	_, err = f.giftMaps.AddItem(ctx, testOwner, "nobody", ItemInput{Name: "Book"})
	assert.ErrorIs(t, err, ErrGiftMapNotFound)

	name := "x"
	assert.ErrorIs(t, f.giftMaps.UpdateItem(ctx, testOwner, "nobody", "item", ItemPatch{Name: &name}), ErrGiftMapNotFound)
	assert.ErrorIs(t, f.giftMaps.DeleteItem(ctx, testOwner, "nobody", "item"), ErrGiftMapNotFound)

	_, err = f.giftMaps.EnableSharing(ctx, testOwner, "nobody")
	assert.ErrorIs(t, err, ErrGiftMapNotFound)
	assert.ErrorIs(t, f.giftMaps.DisableSharing(ctx, testOwner, "nobody"), ErrGiftMapNotFound)

	_, err = f.giftMaps.GetOrCreate(ctx, testOwner, "nobody")
	assert.ErrorIs(t, err, ErrPersonNotFound)

	alice := f.createPerson(t, "Alice")
	assert.ErrorIs(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, "missing", ItemPatch{Name: &name}), ErrGiftMapItemNotFound)
	assert.NoError(t, f.giftMaps.DeleteItem(ctx, testOwner, alice, "missing"))

	// Another owner cannot see Alice's map.
	_, err = f.giftMaps.Get(ctx, "owner-2", alice)
	assert.ErrorIs(t, err, ErrGiftMapNotFound)
}

func TestGiftMapService_ItemValidation(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()
	alice := f.createPerson(t, "Alice")

	_, err := f.giftMaps.AddItem(ctx, testOwner, alice, ItemInput{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidItemInput)

	_, err = f.giftMaps.AddItem(ctx, testOwner, alice, ItemInput{Name: strings.Repeat("x", maxItemNameLength+1)})
	assert.ErrorIs(t, err, ErrInvalidItemInput)

	ids := f.addItems(t, alice, "Book")
	empty := ""
	assert.ErrorIs(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, ids[0], ItemPatch{Name: &empty}), ErrInvalidItemInput)

	id, err := f.giftMaps.AddItem(ctx, testOwner, alice, ItemInput{Name: "  Mug  ", URL: " https://example.com/mug "})
	require.NoError(t, err)
	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	mug := findItem(t, giftMap.Items, id)
	assert.Equal(t, "Mug", mug.Name)
	assert.Equal(t, "https://example.com/mug", mug.URL)
}

func TestGiftMapService_UpdateItemKeepsReservationInvariant(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()
	alice := f.createPerson(t, "Alice")
	ids := f.addItems(t, alice, "Book")

	reserved := true
	require.NoError(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, ids[0], ItemPatch{IsReserved: &reserved}))

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	book := findItem(t, giftMap.Items, ids[0])
	assert.True(t, book.IsReserved)
	require.NotNil(t, book.ReservedAt)
	firstReservedAt := *book.ReservedAt

	// Re-asserting the same state keeps the original timestamp.
	require.NoError(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, ids[0], ItemPatch{IsReserved: &reserved}))
	giftMap, err = f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.Equal(t, firstReservedAt, *findItem(t, giftMap.Items, ids[0]).ReservedAt)

	unreserved := false
	require.NoError(t, f.giftMaps.UpdateItem(ctx, testOwner, alice, ids[0], ItemPatch{IsReserved: &unreserved}))
	giftMap, err = f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	book = findItem(t, giftMap.Items, ids[0])
	assert.False(t, book.IsReserved)
	assert.Nil(t, book.ReservedAt)
	assert.Equal(t, ids[0], book.ID)
}

func TestGiftMapService_CreateIfAbsentKeepsName(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	first, err := f.giftMaps.CreateIfAbsent(ctx, testOwner, "p1", "Alice")
	require.NoError(t, err)
	second, err := f.giftMaps.CreateIfAbsent(ctx, testOwner, "p1", "Alicia")
	require.NoError(t, err)

	assert.Equal(t, "Alice", first.PersonName)
	assert.Equal(t, "Alice", second.PersonName)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
}

func TestGiftMapService_TimestampsFollowEngineClock(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	shared := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	reserved := shared.Add(time.Hour)
	f.giftMaps.(*giftMapService).engine.now = func() time.Time { return shared }
	f.shared.(*sharedGiftMapService).engine.now = func() time.Time { return reserved }

	alice := f.createPerson(t, "Alice")
	ids := f.addItems(t, alice, "Book")
	token, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.True(t, shared.Equal(giftMap.UpdatedAt), "got %s", giftMap.UpdatedAt)

	view, err := f.shared.Reserve(ctx, token, ids[0])
	require.NoError(t, err)
	assert.True(t, reserved.Equal(view.UpdatedAt), "got %s", view.UpdatedAt)
	require.NotNil(t, view.Items[0].ReservedAt)
	assert.True(t, reserved.Equal(*view.Items[0].ReservedAt))

	giftMap, err = f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.True(t, reserved.Equal(giftMap.UpdatedAt), "got %s", giftMap.UpdatedAt)

	stored, err := f.sharedRepo.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, reserved.Equal(stored.UpdatedAt), "got %s", stored.UpdatedAt)
}

func TestGiftMapService_RetriesOnVersionConflict(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()
	alice := f.createPerson(t, "Alice")

	conflicting := newConflictingGiftMapRepo(f.giftMapRepo, 2)
	svc := NewGiftMapService(f.db, conflicting, f.sharedRepo, f.people, f.notifier, 5)

	_, err := svc.AddItem(ctx, testOwner, alice, ItemInput{Name: "Book"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), *conflicting.calls)

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.Len(t, giftMap.Items, 1)
}

func TestGiftMapService_ConflictRetryExhausted(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()
	alice := f.createPerson(t, "Alice")

	conflicting := newConflictingGiftMapRepo(f.giftMapRepo, 100)
	svc := NewGiftMapService(f.db, conflicting, f.sharedRepo, f.people, f.notifier, 3)

	_, err := svc.AddItem(ctx, testOwner, alice, ItemInput{Name: "Book"})
	assert.ErrorIs(t, err, ErrConflictRetryExhausted)
	assert.Equal(t, int32(3), *conflicting.calls)

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.Empty(t, giftMap.Items)
}

func TestGiftMapService_FailedProjectionWriteRollsBackOwner(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()
	alice := f.createPerson(t, "Alice")
	_, err := f.giftMaps.EnableSharing(ctx, testOwner, alice)
	require.NoError(t, err)

	svc := NewGiftMapService(f.db, f.giftMapRepo, failingSharedRepo{f.sharedRepo}, f.people, f.notifier, 3)
	_, err = svc.AddItem(ctx, testOwner, alice, ItemInput{Name: "Book"})
	require.ErrorIs(t, err, errProjectionWrite)

	giftMap, err := f.giftMaps.Get(ctx, testOwner, alice)
	require.NoError(t, err)
	assert.Empty(t, giftMap.Items)
}

type failingSharedRepo struct {
	repository.SharedGiftMapRepository
}

var errProjectionWrite = assert.AnError

func (r failingSharedRepo) WithTx(tx *gorm.DB) repository.SharedGiftMapRepository {
	return failingSharedRepo{r.SharedGiftMapRepository.WithTx(tx)}
}

func (r failingSharedRepo) Replace(ctx context.Context, shared *model.SharedGiftMap) error {
	return errProjectionWrite
}
