package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	ContainerWebM = "webm"
	ContainerIVF  = "ivf"

	MimeWebM = "video/webm;codecs=vp8,opus"
	MimeIVF  = "video/x-ivf"
)

// FFmpegConfig configures the ffmpeg-backed encoders.
type FFmpegConfig struct {
	Path         string
	VideoBitrate string
	AudioBitrate string
	SampleRate   int
	Channels     int
	// StopTimeout bounds how long Stop waits for ffmpeg to flush.
	StopTimeout  time.Duration
	ReadyTimeout time.Duration
}

func (c *FFmpegConfig) setDefaults() {
	if c.Path == "" {
		c.Path = "ffmpeg"
	}
	if c.VideoBitrate == "" {
		c.VideoBitrate = "1M"
	}
	if c.AudioBitrate == "" {
		c.AudioBitrate = "64k"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 2 * time.Second
	}
}

// ArgsParams describes one ffmpeg invocation.
type ArgsParams struct {
	Container    string
	Width        int
	Height       int
	FrameRate    int
	Audio        bool
	SampleRate   int
	Channels     int
	VideoBitrate string
	AudioBitrate string
	// ClusterMillis bounds webm cluster duration so output flushes once per timeslice.
	ClusterMillis int64
}

// BuildArgs returns the ffmpeg arguments that read raw RGBA frames on stdin,
// PCM audio on fd 3 and write the container to stdout.
func BuildArgs(p ArgsParams) []string {
	args := []string{
		"-nostats", "-hide_banner", "-loglevel", "warning",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", strconv.Itoa(p.FrameRate),
		"-i", "pipe:0",
	}

	audio := p.Audio && p.Container == ContainerWebM
	if audio {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(p.SampleRate),
			"-ac", strconv.Itoa(p.Channels),
			"-i", "pipe:3",
		)
	}

	args = append(args,
		"-c:v", "libvpx",
		"-b:v", p.VideoBitrate,
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-auto-alt-ref", "0",
	)

	switch p.Container {
	case ContainerIVF:
		args = append(args, "-an", "-f", "ivf")
	default:
		if audio {
			args = append(args, "-c:a", "libopus", "-b:a", p.AudioBitrate)
		} else {
			args = append(args, "-an")
		}
		args = append(args, "-f", "webm", "-live", "1")
		if p.ClusterMillis > 0 {
			args = append(args, "-cluster_time_limit", strconv.FormatInt(p.ClusterMillis, 10))
		}
	}

	return append(args, "pipe:1")
}

// chunkReader turns ffmpeg stdout into chunks.
type chunkReader func(stdout io.Reader, timeslice time.Duration, onChunk ports.ChunkHandler) error

// FFmpegEncoder pipes the stream through an ffmpeg child process, one process
// per Start/Stop cycle.
type FFmpegEncoder struct {
	cfg       FFmpegConfig
	container string
	read      chunkReader
	logger    *zap.SugaredLogger

	mu  sync.Mutex
	run *ffmpegRun
}

type ffmpegRun struct {
	cmd      *exec.Cmd
	stop     chan struct{}
	done     chan struct{}
	stderr   *tailBuffer
	stopping bool
	err      error
}

// NewWebMEncoder records VP8 video and Opus audio into WebM.
func NewWebMEncoder(cfg FFmpegConfig, logger *zap.SugaredLogger) (*FFmpegEncoder, error) {
	return newFFmpegEncoder(cfg, ContainerWebM, readSlices, logger)
}

func newFFmpegEncoder(cfg FFmpegConfig, container string, read chunkReader, logger *zap.SugaredLogger) (*FFmpegEncoder, error) {
	cfg.setDefaults()
	path, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	cfg.Path = path
	return &FFmpegEncoder{cfg: cfg, container: container, read: read, logger: logger}, nil
}

func (e *FFmpegEncoder) MimeType() string {
	if e.container == ContainerIVF {
		return MimeIVF
	}
	return MimeWebM
}

func (e *FFmpegEncoder) Extension() string {
	return "." + e.container
}

func (e *FFmpegEncoder) Start(stream ports.Stream, timeslice time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run != nil {
		return ErrAlreadyStarted
	}
	videos := stream.VideoTracks()
	if len(videos) == 0 {
		return ErrNoVideoTrack
	}
	video := videos[0]

	select {
	case <-video.Ready():
	case <-time.After(e.cfg.ReadyTimeout):
		return fmt.Errorf("video track produced no frame within %s", e.cfg.ReadyTimeout)
	}
	frame := video.LatestFrame()
	if frame == nil {
		return ErrNoVideoTrack
	}
	width, height := even(frame.Bounds().Dx()), even(frame.Bounds().Dy())
	fps := int(video.Settings().FrameRate)
	if fps <= 0 {
		fps = 30
	}

	var audio ports.AudioTrack
	if tracks := stream.AudioTracks(); len(tracks) > 0 && e.container == ContainerWebM {
		audio = tracks[0]
	}

	args := BuildArgs(ArgsParams{
		Container:     e.container,
		Width:         width,
		Height:        height,
		FrameRate:     fps,
		Audio:         audio != nil,
		SampleRate:    e.cfg.SampleRate,
		Channels:      e.cfg.Channels,
		VideoBitrate:  e.cfg.VideoBitrate,
		AudioBitrate:  e.cfg.AudioBitrate,
		ClusterMillis: timeslice.Milliseconds(),
	})

	cmd := exec.Command(e.cfg.Path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	run := &ffmpegRun{
		cmd:    cmd,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		stderr: newTailBuffer(4096),
	}
	cmd.Stderr = run.stderr

	var audioW *os.File
	if audio != nil {
		audioR, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
		audioW = w
		defer audioR.Close()
	}

	if err := cmd.Start(); err != nil {
		if audioW != nil {
			audioW.Close()
		}
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.logger.Infow("ffmpeg encoder started",
		"container", e.container, "width", width, "height", height, "fps", fps, "audio", audio != nil)

	go pumpFrames(video, width, height, fps, stdin, run.stop)
	if audioW != nil {
		go pumpAudio(audio, audioW, run.stop)
	}
	go e.wait(run, stdout, timeslice, onChunk, onError)

	e.run = run
	return nil
}

func (e *FFmpegEncoder) wait(run *ffmpegRun, stdout io.Reader, timeslice time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) {
	defer close(run.done)

	readErr := e.read(stdout, timeslice, onChunk)
	waitErr := run.cmd.Wait()

	e.mu.Lock()
	stopping := run.stopping
	e.mu.Unlock()

	err := errors.Join(readErr, waitErr)
	if err == nil {
		return
	}
	err = fmt.Errorf("%w: ffmpeg: %v: %s", domain.ErrEncoderFault, err, run.stderr.String())
	run.err = err
	if !stopping {
		e.logger.Errorw("ffmpeg exited unexpectedly", "error", err)
		onError(err)
	}
}

// Stop closes the input pipes and waits for ffmpeg to drain its output.
func (e *FFmpegEncoder) Stop() error {
	e.mu.Lock()
	run := e.run
	if run == nil {
		e.mu.Unlock()
		return nil
	}
	run.stopping = true
	e.run = nil
	e.mu.Unlock()

	close(run.stop)

	select {
	case <-run.done:
	case <-time.After(e.cfg.StopTimeout):
		e.logger.Warnw("ffmpeg did not exit, killing", "timeout", e.cfg.StopTimeout)
		run.cmd.Process.Kill()
		<-run.done
	}
	return run.err
}

func (e *FFmpegEncoder) Close() error {
	return e.Stop()
}

// pumpFrames writes one raw RGBA frame per tick until stop.
func pumpFrames(track ports.VideoTrack, width, height, fps int, stdin io.WriteCloser, stop <-chan struct{}) {
	defer stdin.Close()

	ticker := time.NewTicker(utils.FrameInterval(fps))
	defer ticker.Stop()

	buf := image.NewRGBA(image.Rect(0, 0, width, height))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame := track.LatestFrame()
			if frame == nil {
				continue
			}
			fitFrame(buf, frame)
			if _, err := stdin.Write(buf.Pix); err != nil {
				return
			}
		}
	}
}

// fitFrame copies frame into dst, scaling when the composited size changed
// mid-recording.
func fitFrame(dst *image.RGBA, frame image.Image) {
	if frame.Bounds().Size() == dst.Bounds().Size() {
		draw.Copy(dst, image.Point{}, frame, frame.Bounds(), draw.Src, nil)
		return
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)
}

func pumpAudio(track ports.AudioTrack, w io.WriteCloser, stop <-chan struct{}) {
	defer w.Close()

	buf := make([]byte, 3840)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := track.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readSlices groups container bytes into one chunk per timeslice.
func readSlices(stdout io.Reader, timeslice time.Duration, onChunk ports.ChunkHandler) error {
	type result struct {
		data []byte
		err  error
	}
	reads := make(chan result)
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buf)
			reads <- result{data: bytes.Clone(buf[:n]), err: err}
			if err != nil {
				return
			}
		}
	}()

	var flush <-chan time.Time
	if timeslice > 0 {
		ticker := time.NewTicker(timeslice)
		defer ticker.Stop()
		flush = ticker.C
	}

	var pending bytes.Buffer
	sliceStart := time.Now()
	emit := func() {
		if pending.Len() == 0 {
			return
		}
		now := time.Now()
		onChunk(media.Sample{Data: bytes.Clone(pending.Bytes()), Timestamp: sliceStart, Duration: now.Sub(sliceStart)})
		pending.Reset()
		sliceStart = now
	}

	for {
		select {
		case <-flush:
			emit()
		case r := <-reads:
			pending.Write(r.data)
			if r.err != nil {
				emit()
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return r.err
			}
		}
	}
}

func even(n int) int {
	return n &^ 1
}

// tailBuffer keeps the last bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	data []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.data))
}
