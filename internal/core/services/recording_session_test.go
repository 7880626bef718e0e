package services

import (
	"bytes"
	"context"
	"image"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/testutil"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameStub struct{}

func (frameStub) Flatten() (*image.RGBA, error) {
	return solid(8, 8, green), nil
}

type recordingFixture struct {
	factory *testutil.EncoderFactory
	sink    *testutil.MemorySink
	devices *testutil.FakeDevices
	session *RecordingSession
}

func newRecordingFixture(t *testing.T, cfg RecordingConfig) *recordingFixture {
	f := &recordingFixture{
		factory: &testutil.EncoderFactory{},
		sink:    &testutil.MemorySink{},
		devices: testutil.NewFakeDevices(8, 8),
	}
	f.session = NewRecordingSession(cfg, frameStub{}, f.devices, f.factory.New, f.sink, nil, testLogger(t))
	t.Cleanup(func() { f.session.Close(context.Background()) })
	return f
}

func TestStartTwiceConstructsOneEncoder(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	require.NoError(t, f.session.Start(ctx))

	assert.Len(t, f.factory.Encoders(), 1)
	assert.Equal(t, 1, f.factory.Last().Starts())
	assert.Equal(t, 1, f.session.Buffer().Resets())
	assert.Equal(t, domain.RecordingActive, f.session.State())
}

func TestSlowEncoderStartLeavesStateReadable(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	gate := make(chan struct{})
	f.factory.Setup = func(e *testutil.FakeEncoder) { e.StartGate = gate }
	ctx := context.Background()

	started := make(chan error, 1)
	go func() { started <- f.session.Start(ctx) }()

	require.Eventually(t, func() bool { return f.session.State() == domain.RecordingStarting }, time.Second, time.Millisecond)
	assert.Equal(t, domain.RecordingStarting, f.session.Stats().State)
	require.NoError(t, f.session.Start(ctx), "start while starting does nothing")

	close(gate)
	require.NoError(t, <-started)
	assert.Equal(t, domain.RecordingActive, f.session.State())
	assert.Len(t, f.factory.Encoders(), 1)
	assert.Equal(t, 1, f.factory.Last().Starts())
}

func TestCloseAbandonsStartInProgress(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	gate := make(chan struct{})
	f.factory.Setup = func(e *testutil.FakeEncoder) { e.StartGate = gate }
	ctx := context.Background()

	started := make(chan error, 1)
	go func() { started <- f.session.Start(ctx) }()
	require.Eventually(t, func() bool { return f.session.State() == domain.RecordingStarting }, time.Second, time.Millisecond)

	require.NoError(t, f.session.Close(ctx))
	assert.Equal(t, domain.RecordingIdle, f.session.State())
	assert.True(t, f.factory.Last().Closed())

	close(gate)
	assert.ErrorIs(t, <-started, errStartAborted)
	assert.Equal(t, domain.RecordingIdle, f.session.State())
	assert.Empty(t, f.sink.Artifacts())
}

func TestStopConcatenatesChunksInOrder(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	f.factory.Setup = func(e *testutil.FakeEncoder) {
		e.Trailing = []media.Sample{{Data: []byte("-tail")}}
	}
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	enc := f.factory.Last()
	enc.Emit([]byte("one"))
	enc.Emit(nil)
	enc.Emit([]byte("-two"))

	artifact, err := f.session.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.Equal(t, []byte("one-two-tail"), artifact.Data)
	assert.Equal(t, "recording.webm", artifact.Name)
	assert.Equal(t, "video/webm;codecs=vp8,opus", artifact.MimeType)
	assert.Equal(t, domain.ArtifactRecording, artifact.Kind)
	assert.Equal(t, []*domain.Artifact{artifact}, f.sink.Artifacts())
	assert.Equal(t, domain.RecordingIdle, f.session.State())
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})

	artifact, err := f.session.Stop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Empty(t, f.factory.Encoders())
	assert.Empty(t, f.sink.Artifacts())
}

func TestEncoderIsReusedAcrossCycles(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{FileName: "clip"})
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	f.factory.Last().Emit([]byte("first"))
	first, err := f.session.Stop(ctx)
	require.NoError(t, err)

	require.NoError(t, f.session.Start(ctx))
	f.factory.Last().Emit([]byte("second"))
	second, err := f.session.Stop(ctx)
	require.NoError(t, err)

	assert.Len(t, f.factory.Encoders(), 1)
	assert.Equal(t, 2, f.session.Buffer().Resets())
	assert.Equal(t, []byte("first"), first.Data)
	assert.Equal(t, []byte("second"), second.Data, "buffer resets at each start")
	assert.Equal(t, "clip.webm", second.Name)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEncoderFaultReturnsToIdle(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	enc := f.factory.Last()
	enc.Emit([]byte("partial"))
	enc.Fail(testutil.ErrInjected)

	require.Eventually(t, func() bool {
		return f.session.State() == domain.RecordingIdle
	}, time.Second, time.Millisecond)
	assert.True(t, enc.Closed(), "faulted encoder is disposed")
	assert.Equal(t, 0, f.session.Buffer().Len(), "buffer discarded")

	derived := enc.Stream().VideoTracks()[0]
	assert.True(t, derived.Ended(), "derived stream released")

	require.NoError(t, f.session.Start(ctx))
	assert.Len(t, f.factory.Encoders(), 2, "next start builds a fresh encoder")

	artifact, err := f.session.Stop(ctx)
	require.NoError(t, err)
	assert.Empty(t, artifact.Data)
}

func TestEncoderStartFailure(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	f.factory.Setup = func(e *testutil.FakeEncoder) { e.StartErr = testutil.ErrInjected }

	err := f.session.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrEncoderFault)
	assert.Equal(t, domain.RecordingIdle, f.session.State())
	assert.True(t, f.factory.Last().Closed())
}

func TestEncoderFinalizeFailure(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	f.factory.Setup = func(e *testutil.FakeEncoder) { e.StopErr = testutil.ErrInjected }
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	artifact, err := f.session.Stop(ctx)
	assert.Nil(t, artifact)
	assert.ErrorIs(t, err, domain.ErrEncoderFault)
	assert.Equal(t, domain.RecordingIdle, f.session.State())
	assert.Empty(t, f.sink.Artifacts())
}

func TestRecordingMergesAndReleasesAudio(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{Audio: true})
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	stream := f.factory.Last().Stream()
	assert.Len(t, stream.VideoTracks(), 1)
	assert.Len(t, stream.AudioTracks(), 1)

	calls := f.devices.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Audio)
	assert.False(t, calls[0].Video, "audio is acquired on its own stream")

	_, err := f.session.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.devices.AudioTracks()[0].StopCalls())
	assert.True(t, stream.VideoTracks()[0].Ended())
}

func TestRecordingWithoutMicrophoneStillStarts(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{Audio: true})
	f.devices.Err = domain.ErrMediaUnavailable

	require.NoError(t, f.session.Start(context.Background()))
	assert.Empty(t, f.factory.Last().Stream().AudioTracks())
}

func TestToggleRecording(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	ctx := context.Background()

	artifact, err := f.session.Toggle(ctx)
	require.NoError(t, err)
	assert.Nil(t, artifact)
	assert.Equal(t, domain.RecordingActive, f.session.State())

	f.factory.Last().Emit([]byte("x"))
	artifact, err = f.session.Toggle(ctx)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, domain.RecordingIdle, f.session.State())
}

func TestCloseSavesAndDisposesEncoder(t *testing.T) {
	f := newRecordingFixture(t, RecordingConfig{})
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	f.factory.Last().Emit([]byte("x"))
	require.NoError(t, f.session.Close(ctx))

	assert.Len(t, f.sink.Artifacts(), 1)
	assert.True(t, f.factory.Last().Closed())
}

// muxingEncoder wraps chunks in a trivial container.
type muxingEncoder struct {
	*testutil.FakeEncoder
}

func (m muxingEncoder) Mux(chunks []media.Sample) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("HDR")
	for _, c := range chunks {
		buf.WriteByte(byte(len(c.Data)))
		buf.Write(c.Data)
	}
	return buf.Bytes(), nil
}

func TestContainerMuxerWrapsChunks(t *testing.T) {
	var enc *testutil.FakeEncoder
	session := NewRecordingSession(RecordingConfig{}, frameStub{}, nil, func() (ports.Encoder, error) {
		enc = testutil.NewFakeEncoder()
		enc.Mime, enc.Ext = "video/x-ivf", ".ivf"
		return muxingEncoder{enc}, nil
	}, &testutil.MemorySink{}, nil, testLogger(t))
	ctx := context.Background()

	require.NoError(t, session.Start(ctx))
	enc.Emit([]byte("ab"))
	enc.Emit([]byte("c"))
	artifact, err := session.Stop(ctx)
	require.NoError(t, err)

	assert.Equal(t, []byte("HDR\x02ab\x01c"), artifact.Data)
	assert.Equal(t, "recording.ivf", artifact.Name)
	assert.Equal(t, "video/x-ivf", artifact.MimeType)
}
