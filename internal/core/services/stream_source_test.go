package services

import (
	"context"
	"errors"
	"testing"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRequestsConstraints(t *testing.T) {
	devices := testutil.NewFakeDevices(1280, 720)
	source := NewStreamSource(devices, nil, nil, testLogger(t))

	h, err := source.Acquire(context.Background(), StreamRequest{
		FacingMode:    domain.FacingEnvironment,
		DesiredHeight: 540,
		AspectRatio:   4.0 / 3.0,
		Portrait:      true,
	})
	require.NoError(t, err)

	calls := devices.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Video)
	assert.False(t, calls[0].Audio)
	assert.Equal(t, domain.FacingEnvironment, calls[0].FacingMode)
	assert.Equal(t, 540, calls[0].IdealHeight)
	assert.InDelta(t, 0.75, calls[0].AspectRatio, 1e-9, "portrait inverts the ratio")

	info := h.Info()
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 720, info.Height)
	assert.Equal(t, domain.FacingEnvironment, info.FacingMode)
	assert.Same(t, h, source.Current())

	select {
	case <-h.Ready():
	default:
		t.Fatal("handle should be ready once a frame exists")
	}
}

func TestAcquireReleasesPreviousHandleFirst(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	source := NewStreamSource(devices, nil, nil, testLogger(t))
	ctx := context.Background()

	first, err := source.Acquire(ctx, StreamRequest{FacingMode: domain.FacingUser})
	require.NoError(t, err)
	second, err := source.Acquire(ctx, StreamRequest{FacingMode: domain.FacingEnvironment})
	require.NoError(t, err)

	tracks := devices.VideoTracks()
	require.Len(t, tracks, 2)
	assert.True(t, first.Released())
	assert.Equal(t, 1, tracks[0].StopCalls())
	assert.False(t, second.Released())
	assert.Equal(t, 0, tracks[1].StopCalls())
	assert.Same(t, second, source.Current())
}

func TestReleaseIsIdempotentAndIsolated(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	source := NewStreamSource(devices, nil, nil, testLogger(t))
	ctx := context.Background()

	first, err := source.Acquire(ctx, StreamRequest{})
	require.NoError(t, err)
	second, err := source.Acquire(ctx, StreamRequest{})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		source.Release(first)
		source.Release(first)
		source.Release(nil)
	})

	tracks := devices.VideoTracks()
	assert.Equal(t, 1, tracks[0].StopCalls())
	assert.Equal(t, 0, tracks[1].StopCalls(), "releasing a stale handle must not touch the live one")
	assert.Same(t, second, source.Current())

	source.Release(second)
	source.Release(second)
	assert.Equal(t, 1, tracks[1].StopCalls())
	assert.Nil(t, source.Current())
}

func TestAcquireFailureIsMediaUnavailable(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	devices.Err = errors.New("permission denied")
	metrics := NewMetricsService()
	source := NewStreamSource(devices, nil, metrics, testLogger(t))

	h, err := source.Acquire(context.Background(), StreamRequest{FacingMode: domain.FacingUser})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, domain.ErrMediaUnavailable)
	assert.Len(t, devices.Calls(), 1, "no automatic retry")
	assert.Equal(t, 1, metrics.Snapshot().StreamFailures)
}

func TestPreCorrectedFlagComesFromProbe(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	devices.PreCorrected = true
	source := NewStreamSource(devices, nil, nil, testLogger(t))

	h, err := source.Acquire(context.Background(), StreamRequest{})
	require.NoError(t, err)
	assert.True(t, h.PreCorrected())
	assert.True(t, h.Info().PreCorrected)
}

type forcedProbe bool

func (p forcedProbe) PreCorrectedCoordinates(ports.VideoTrack) bool { return bool(p) }

func TestCustomProbeOverridesTrack(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	source := NewStreamSource(devices, forcedProbe(true), nil, testLogger(t))

	h, err := source.Acquire(context.Background(), StreamRequest{})
	require.NoError(t, err)
	assert.True(t, h.PreCorrected())
}

func TestCapabilitiesUsesThrowawayStream(t *testing.T) {
	devices := testutil.NewFakeDevices(1920, 1080)
	source := NewStreamSource(devices, nil, nil, testLogger(t))

	caps, settings, err := source.Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Capabilities{MaxWidth: 1920, MaxHeight: 1080}, caps)
	assert.Equal(t, 1080, settings.Height)

	tracks := devices.VideoTracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].StopCalls())
	assert.Nil(t, source.Current())
}
