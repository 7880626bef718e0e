package services

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/infrastructure/render"
	"overlaycam/internal/infrastructure/scheduler"
	"overlaycam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type studioFixture struct {
	devices *testutil.FakeDevices
	sched   *scheduler.ManualScheduler
	sink    *testutil.MemorySink
	factory *testutil.EncoderFactory
	studio  *Studio
}

func newStudioFixture(t *testing.T, layout domain.Layout) *studioFixture {
	f := &studioFixture{
		devices: testutil.NewFakeDevices(1280, 720),
		sched:   scheduler.NewManualScheduler(),
		sink:    &testutil.MemorySink{},
		factory: &testutil.EncoderFactory{},
	}
	loader := testutil.StaticLoader{
		"assets/aqua.png": solid(200, 200, red),
		"assets/rem.png":  solid(100, 100, blue),
	}
	f.studio = NewStudio(StudioConfig{
		Layout:         layout,
		Sizer:          SizerConfig{IdealWidth: 1080, IdealHeight: 720, MaxWidth: 1080, MaxHeight: 720},
		DefaultOverlay: "aqua",
	}, StudioDeps{
		Devices:    f.devices,
		Loader:     loader,
		Catalog:    domain.DefaultOverlayCatalog(),
		NewSurface: render.Factory(),
		Scheduler:  f.sched,
		NewEncoder: f.factory.New,
		Sink:       f.sink,
		Logger:     testLogger(t),
	})
	t.Cleanup(func() { f.studio.Close(context.Background()) })
	return f
}

func (f *studioFixture) open(t *testing.T) domain.StudioState {
	t.Helper()
	state, err := f.studio.Open(context.Background(), domain.OpenRequest{Container: domain.Bounds{Width: 1280, Height: 800}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.studio.State().OverlayOK }, time.Second, time.Millisecond)
	return state
}

func TestStudioOpen(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSingle)
	state := f.open(t)

	assert.True(t, state.Open)
	assert.Equal(t, domain.Dimension{Width: 1080, Height: 720}, state.Dimension)
	assert.Equal(t, domain.FacingUser, state.FacingMode)
	assert.InDelta(t, 0.4, state.Scale, 1e-9)
	require.NotNil(t, state.Stream)
	assert.Equal(t, 1280, state.Stream.Width)
	assert.Empty(t, state.Message)

	calls := f.devices.Calls()
	require.Len(t, calls, 2, "capability probe then the session stream")
	assert.Equal(t, 720, calls[1].IdealHeight)
	assert.Equal(t, 1, f.devices.VideoTracks()[0].StopCalls(), "probe stream released")
	assert.Equal(t, []string{"aqua", "dio", "rem"}, f.studio.Overlays())
}

func TestStudioCommandsRequireOpenSession(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSingle)
	ctx := context.Background()

	_, err := f.studio.Move(domain.DirectionLeft)
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	_, err = f.studio.ZoomIn()
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	_, err = f.studio.Capture(ctx)
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	assert.ErrorIs(t, f.studio.StartRecording(ctx), domain.ErrNotOpen)
	assert.ErrorIs(t, f.studio.SelectOverlay(ctx, "rem"), domain.ErrNotOpen)
	_, err = f.studio.ToggleFacing(ctx)
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	_, err = f.studio.Preview()
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	assert.NoError(t, f.studio.Close(ctx))
}

func TestStudioMoveZoomAndPreview(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSingle)
	f.open(t)

	pos, err := f.studio.Move(domain.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 50}, pos)

	scale, err := f.studio.ZoomIn()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scale, 1e-9)
	scale, err = f.studio.ZoomOut()
	require.NoError(t, err)
	assert.InDelta(t, 0.4, scale, 1e-9)

	_, err = f.studio.Move("sideways")
	assert.Error(t, err)

	f.sched.Tick(16 * time.Millisecond)
	frame, err := f.studio.Preview()
	require.NoError(t, err)
	assert.Equal(t, red, frame.RGBAAt(60, 10), "overlay moved right by one step")
	assert.Equal(t, green, frame.RGBAAt(10, 10), "video behind")
}

func TestStudioToggleFacingReleasesOldStream(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSplit)
	f.open(t)

	state, err := f.studio.ToggleFacing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.FacingEnvironment, state.FacingMode)

	calls := f.devices.Calls()
	assert.Equal(t, domain.FacingEnvironment, calls[len(calls)-1].FacingMode)

	tracks := f.devices.VideoTracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, 1, tracks[1].StopCalls(), "front camera released")
	assert.Equal(t, 0, tracks[2].StopCalls())

	state, err = f.studio.ToggleFacing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.FacingUser, state.FacingMode)
}

func TestStudioCameraUnavailable(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSingle)
	f.devices.Err = domain.ErrMediaUnavailable

	state, err := f.studio.Open(context.Background(), domain.OpenRequest{Container: domain.Bounds{Width: 800, Height: 600}})
	assert.ErrorIs(t, err, domain.ErrMediaUnavailable)
	assert.True(t, state.Open, "session stays usable without video")
	assert.Nil(t, state.Stream)
	assert.NotEmpty(t, state.Message)

	f.sched.Tick(16 * time.Millisecond)
	assert.EqualValues(t, 1, f.studio.State().Compositor.Ticks)
}

func TestStudioCaptureAndRecord(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSplit)
	f.open(t)
	ctx := context.Background()
	f.sched.Tick(16 * time.Millisecond)

	still, err := f.studio.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactStill, still.Kind)

	require.NoError(t, f.studio.StartRecording(ctx))
	assert.Equal(t, domain.RecordingActive, f.studio.State().Recording.State)
	f.factory.Last().Emit([]byte("vp8"))

	video, err := f.studio.StopRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, "recording.webm", video.Name)

	toggled, err := f.studio.ToggleRecording(ctx)
	require.NoError(t, err)
	assert.Nil(t, toggled)
	assert.Equal(t, domain.RecordingActive, f.studio.State().Recording.State)

	assert.Len(t, f.sink.Artifacts(), 2)
	assert.Len(t, f.factory.Encoders(), 1)

	require.NoError(t, f.studio.Close(ctx))
	assert.Len(t, f.sink.Artifacts(), 3, "closing saves the running recording")
	assert.False(t, f.studio.State().Open)
}

func TestStudioSelectOverlay(t *testing.T) {
	f := newStudioFixture(t, domain.LayoutSingle)
	f.open(t)
	ctx := context.Background()

	require.NoError(t, f.studio.SelectOverlay(ctx, "rem"))
	assert.Equal(t, "rem", f.studio.State().Overlay)
	assert.True(t, f.studio.State().OverlayOK)

	assert.ErrorIs(t, f.studio.SelectOverlay(ctx, "missing"), domain.ErrUnknownOverlay)

	err := f.studio.SelectOverlay(ctx, "dio")
	assert.Error(t, err, "dio has no image in the loader")
	assert.False(t, f.studio.State().OverlayOK)
}

// firstLoadHangs blocks its first load until the context ends and serves
// every later load at once.
type firstLoadHangs struct {
	calls atomic.Int32
	img   image.Image
}

func (l *firstLoadHangs) Load(ctx context.Context, _ string) (image.Image, error) {
	if l.calls.Add(1) == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return l.img, nil
}

func TestStudioReopenReloadsInterruptedOverlay(t *testing.T) {
	loader := &firstLoadHangs{img: solid(200, 200, red)}
	studio := NewStudio(StudioConfig{
		Layout:         domain.LayoutSingle,
		Sizer:          SizerConfig{IdealWidth: 1080, IdealHeight: 720, MaxWidth: 1080, MaxHeight: 720},
		DefaultOverlay: "aqua",
	}, StudioDeps{
		Devices:    testutil.NewFakeDevices(1280, 720),
		Loader:     loader,
		Catalog:    domain.DefaultOverlayCatalog(),
		NewSurface: render.Factory(),
		Scheduler:  scheduler.NewManualScheduler(),
		NewEncoder: (&testutil.EncoderFactory{}).New,
		Sink:       &testutil.MemorySink{},
		Logger:     testLogger(t),
	})
	ctx := context.Background()
	req := domain.OpenRequest{Container: domain.Bounds{Width: 1280, Height: 800}}
	t.Cleanup(func() { studio.Close(ctx) })

	_, err := studio.Open(ctx, req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, studio.Close(ctx))
	assert.False(t, studio.State().OverlayOK)

	_, err = studio.Open(ctx, req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return studio.State().OverlayOK }, time.Second, time.Millisecond)
	assert.Equal(t, "aqua", studio.State().Overlay)
}
