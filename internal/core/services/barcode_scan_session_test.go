package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []domain.ScanEvent
}

func (l *eventLog) add(e domain.ScanEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []domain.ScanEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ScanEvent(nil), l.events...)
}

func TestScanEmitsOnlyDecodedFrames(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	decoder := (&testutil.ScriptedDecoder{}).Miss(5).Hit("ABC123", domain.FormatQRCode)
	sched := newManual()
	session := NewBarcodeScanSession(decoder, sched, NewStreamSource(devices, nil, nil, testLogger(t)), domain.DecodeHints{}, nil, testLogger(t))

	var log eventLog
	require.NoError(t, session.StartWithConstraints(context.Background(), StreamRequest{FacingMode: domain.FacingEnvironment}, log.add))
	sched.TickN(10, 100*time.Millisecond)

	events := log.all()
	require.Len(t, events, 1)
	assert.Equal(t, "ABC123", events[0].Result.Text)
	assert.Equal(t, domain.FormatQRCode, events[0].Result.Format)
	assert.Equal(t, session.ID(), events[0].SessionID)
	assert.Equal(t, 10, decoder.Calls(), "one attempt per tick")
}

func TestScanSurvivesDecoderErrors(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	decoder := (&testutil.ScriptedDecoder{}).Fail(errors.New("checksum")).Miss(1).Hit("42", domain.FormatEAN13)
	sched := newManual()
	session := NewBarcodeScanSession(decoder, sched, NewStreamSource(devices, nil, nil, testLogger(t)), domain.DecodeHints{}, nil, testLogger(t))

	var log eventLog
	require.NoError(t, session.StartWithConstraints(context.Background(), StreamRequest{}, log.add))
	sched.TickN(3, time.Millisecond)

	require.Len(t, log.all(), 1)
	assert.True(t, session.Running())
}

func TestScanStopReleasesOwnedStream(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	sched := newManual()
	session := NewBarcodeScanSession(&testutil.ScriptedDecoder{}, sched, NewStreamSource(devices, nil, nil, testLogger(t)), domain.DecodeHints{}, nil, testLogger(t))

	require.NoError(t, session.StartWithConstraints(context.Background(), StreamRequest{}, nil))
	assert.ErrorIs(t, session.StartWithConstraints(context.Background(), StreamRequest{}, nil), ErrScanRunning)

	session.Stop()
	session.Stop()

	assert.False(t, session.Running())
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 1, devices.VideoTracks()[0].StopCalls())
}

func TestScanWithCallerHandleLeavesStreamAlone(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	source := NewStreamSource(devices, nil, nil, testLogger(t))
	h, err := source.Acquire(context.Background(), StreamRequest{})
	require.NoError(t, err)

	decoder := (&testutil.ScriptedDecoder{}).Hit("x", domain.FormatCode128)
	sched := newManual()
	session := NewBarcodeScanSession(decoder, sched, nil, domain.DecodeHints{}, nil, testLogger(t))

	var log eventLog
	require.NoError(t, session.StartWithHandle(context.Background(), h, log.add))
	sched.Tick(time.Millisecond)
	session.Stop()
	sched.Tick(time.Millisecond)

	assert.Len(t, log.all(), 1)
	assert.False(t, h.Released())
}

func TestScanSkipsFramelessStream(t *testing.T) {
	devices := testutil.NewFakeDevices(640, 480)
	devices.NoFrame = true
	decoder := &testutil.ScriptedDecoder{}
	sched := newManual()
	session := NewBarcodeScanSession(decoder, sched, NewStreamSource(devices, nil, nil, testLogger(t)), domain.DecodeHints{}, nil, testLogger(t))

	require.NoError(t, session.StartWithConstraints(context.Background(), StreamRequest{}, nil))
	sched.TickN(3, time.Millisecond)
	assert.Equal(t, 0, decoder.Calls())
}

func TestScanHintsDefaultToAllFormats(t *testing.T) {
	session := NewBarcodeScanSession(&testutil.ScriptedDecoder{}, newManual(), nil, domain.DecodeHints{TryHarder: true}, nil, testLogger(t))
	assert.Equal(t, domain.AllBarcodeFormats(), session.hints.PossibleFormats)
	assert.True(t, session.hints.TryHarder)
}
