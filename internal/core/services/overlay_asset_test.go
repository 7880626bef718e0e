package services

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("overlay load did not complete")
		return nil
	}
}

func TestSelectLoadsOverlay(t *testing.T) {
	img := solid(10, 10, red)
	asset := NewOverlayAsset(domain.DefaultOverlayCatalog(), testutil.StaticLoader{"assets/rem.png": img}, testLogger(t))

	assert.False(t, asset.IsReady())
	require.NoError(t, waitErr(t, asset.Select(context.Background(), "rem")))

	got, ok := asset.Bitmap()
	assert.True(t, ok)
	assert.Same(t, img, got)
	assert.Equal(t, "rem", asset.Key())
}

func TestLastSelectedOverlayWins(t *testing.T) {
	loader := testutil.NewGatedLoader()
	asset := NewOverlayAsset(domain.DefaultOverlayCatalog(), loader, testLogger(t))
	ctx := context.Background()

	a := asset.Select(ctx, "aqua")
	b := asset.Select(ctx, "dio")

	imgB := solid(4, 4, blue)
	loader.Release("assets/dio.png", imgB, nil)
	require.NoError(t, waitErr(t, b))

	imgA := solid(4, 4, red)
	loader.Release("assets/aqua.png", imgA, nil)
	assert.ErrorIs(t, waitErr(t, a), ErrOverlaySuperseded)

	got, ok := asset.Bitmap()
	require.True(t, ok)
	assert.Same(t, imgB, got, "a late load of A must not replace B")
	assert.Equal(t, "dio", asset.Key())
}

func TestSupersededSelectionIsNeverDrawn(t *testing.T) {
	loader := testutil.NewGatedLoader()
	asset := NewOverlayAsset(domain.DefaultOverlayCatalog(), loader, testLogger(t))
	ctx := context.Background()

	a := asset.Select(ctx, "aqua")
	b := asset.Select(ctx, "rem")

	loader.Release("assets/aqua.png", solid(4, 4, red), nil)
	assert.ErrorIs(t, waitErr(t, a), ErrOverlaySuperseded)
	assert.False(t, asset.IsReady(), "A finished first but B is selected")

	loader.Release("assets/rem.png", solid(4, 4, blue), nil)
	require.NoError(t, waitErr(t, b))

	got, _ := asset.Bitmap()
	assert.Equal(t, blue, got.(*image.RGBA).RGBAAt(0, 0))
}

func TestUnknownOverlayFailsImmediately(t *testing.T) {
	loader := testutil.NewGatedLoader()
	asset := NewOverlayAsset(domain.DefaultOverlayCatalog(), testutil.StaticLoader{"assets/rem.png": solid(2, 2, red)}, testLogger(t))
	require.NoError(t, waitErr(t, asset.Select(context.Background(), "rem")))

	err := waitErr(t, asset.Select(context.Background(), "nope"))
	assert.ErrorIs(t, err, domain.ErrUnknownOverlay)
	assert.True(t, asset.IsReady(), "the current selection is kept")
	assert.Equal(t, "rem", asset.Key())
	assert.Empty(t, loader.Calls())
}

func TestLoadFailureLeavesAssetNotReady(t *testing.T) {
	loader := testutil.NewGatedLoader()
	asset := NewOverlayAsset(domain.DefaultOverlayCatalog(), loader, testLogger(t))

	ch := asset.Select(context.Background(), "aqua")
	loader.Release("assets/aqua.png", nil, errors.New("corrupt png"))

	assert.Error(t, waitErr(t, ch))
	assert.False(t, asset.IsReady())
}
