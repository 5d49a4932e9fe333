package service

import (
	"context"
	"testing"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileService_Run(t *testing.T) {
	f := setupGifting(t)
	ctx := context.Background()

	clean := f.createPerson(t, "Clean")
	drifted := f.createPerson(t, "Drifted")
	unshared := f.createPerson(t, "Unshared")
	f.addItems(t, clean, "Book")
	driftedItems := f.addItems(t, drifted, "Scarf", "Mug")

	cleanToken, err := f.giftMaps.EnableSharing(ctx, testOwner, clean)
	require.NoError(t, err)
	driftedToken, err := f.giftMaps.EnableSharing(ctx, testOwner, drifted)
	require.NoError(t, err)

	// Drift: projection lost an item.
	stored, err := f.sharedRepo.FindByToken(ctx, driftedToken)
	require.NoError(t, err)
	stored.Items = model.GiftMapItems{stored.Items[0]}
	require.NoError(t, f.sharedRepo.Replace(ctx, stored))

	// Orphans: map not shared, and map gone entirely.
	orphanUnshared, err := sharelink.NewToken()
	require.NoError(t, err)
	require.NoError(t, f.sharedRepo.Replace(ctx, &model.SharedGiftMap{
		ShareToken: orphanUnshared, OwnerID: testOwner, GiftMapID: unshared, PersonName: "Unshared",
	}))
	orphanMissing, err := sharelink.NewToken()
	require.NoError(t, err)
	require.NoError(t, f.sharedRepo.Replace(ctx, &model.SharedGiftMap{
		ShareToken: orphanMissing, OwnerID: testOwner, GiftMapID: "deleted-person", PersonName: "Gone",
	}))

	report, err := f.reconcile.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.OrphansRemoved)
	assert.Equal(t, 1, report.Resynced)

	f.assertConverged(t, clean, cleanToken)
	f.assertConverged(t, drifted, driftedToken)

	view, err := f.shared.GetByToken(ctx, driftedToken)
	require.NoError(t, err)
	assert.Len(t, view.Items, len(driftedItems))

	for _, token := range []string{orphanUnshared, orphanMissing} {
		_, err := f.shared.GetByToken(ctx, token)
		assert.ErrorIs(t, err, ErrSharedGiftMapNotFound)
	}
	assert.ElementsMatch(t, []string{orphanUnshared, orphanMissing}, f.publisher.revokedTokens())

	// A second pass finds nothing to do.
	report, err = f.reconcile.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileReport{Scanned: 2}, report)
}

func TestReconcileService_CancelledContext(t *testing.T) {
	f := setupGifting(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reconcile.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
