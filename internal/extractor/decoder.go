package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/bdougie/vision/internal/models"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// Frame is one decoded frame and its 0-based position in the source
type Frame struct {
	Index int
	Image image.Image
}

// Decoder yields frames of a video in source order. Next returns io.EOF once
// the source is exhausted.
type Decoder interface {
	Source() string
	FPS() float64
	Next() (Frame, error)
	Close() error
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// frameSize returns the size of the frames ffmpeg emits for the stream.
// ffmpeg applies rotation metadata, so quarter turns swap width and height.
func (s probeStream) frameSize() (int, int) {
	rotation := 0
	if r, err := strconv.Atoi(strings.TrimSpace(s.Tags.Rotate)); err == nil {
		rotation = r
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = int(math.Round(sd.Rotation))
		}
	}

	if rotation%180 != 0 && rotation%90 == 0 {
		return s.Height, s.Width
	}
	return s.Width, s.Height
}

// FFmpegDecoder decodes a video file into RGB frames through an ffmpeg pipe
type FFmpegDecoder struct {
	path   string
	fps    float64
	width  int
	height int
	stride int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	buf    []byte
	count  int
	done   bool

	waited  bool
	waitErr error
}

// NewFFmpegDecoder probes the video and starts decoding it. A stride greater
// than one makes ffmpeg drop every frame whose position is not a multiple of
// stride; reported indexes remain source positions.
func NewFFmpegDecoder(videoPath string, stride int) (*FFmpegDecoder, error) {
	if stride < 1 {
		stride = 1
	}

	// Check if video file exists
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: "file not accessible", Err: err}
	}

	raw, err := ffmpeg.Probe(videoPath)
	if err != nil {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: "probe failed", Err: err}
	}

	var probe probeOutput
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: "invalid probe output", Err: err}
	}

	d := &FFmpegDecoder{path: videoPath, stride: stride}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		d.width, d.height = s.frameSize()
		d.fps = parseRate(s.RFrameRate)
		if d.fps <= 0 {
			d.fps = parseRate(s.AvgFrameRate)
		}
		break
	}

	if d.width <= 0 || d.height <= 0 {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: "no video stream"}
	}
	if d.fps <= 0 {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: fmt.Sprintf("invalid frame rate %v", d.fps)}
	}

	if err := d.start(); err != nil {
		return nil, &models.UnreadableSourceError{Path: videoPath, Reason: "ffmpeg failed to start", Err: err}
	}
	return d, nil
}

func (d *FFmpegDecoder) start() error {
	outArgs := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
		"vsync":   "0",
	}
	if d.stride > 1 {
		outArgs["vf"] = fmt.Sprintf("select=not(mod(n\\,%d))", d.stride)
	}

	cmd := ffmpeg.Input(d.path).
		Output("pipe:", outArgs).
		WithErrorOutput(&d.stderr).
		Compile()
	return d.launch(cmd)
}

func (d *FFmpegDecoder) launch(cmd *exec.Cmd) error {
	d.cmd = cmd
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	d.stdout = stdout
	d.buf = make([]byte, d.width*d.height*3)

	return d.cmd.Start()
}

// Source returns the video path
func (d *FFmpegDecoder) Source() string {
	return d.path
}

// FPS returns the source frame rate reported by ffprobe
func (d *FFmpegDecoder) FPS() float64 {
	return d.fps
}

// Next reads the next frame from the ffmpeg pipe
func (d *FFmpegDecoder) Next() (Frame, error) {
	if d.done {
		return Frame{}, io.EOF
	}

	if _, err := io.ReadFull(d.stdout, d.buf); err != nil {
		d.done = true
		if errors.Is(err, io.EOF) {
			if werr := d.reap(false); werr != nil {
				return Frame{}, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", werr, d.stderr.String())
			}
			return Frame{}, io.EOF
		}
		d.reap(true)
		return Frame{}, fmt.Errorf("failed to read frame %d: %w\nOutput: %s", d.count, err, d.stderr.String())
	}

	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	for i, j := 0, 0; i < len(d.buf); i, j = i+3, j+4 {
		img.Pix[j] = d.buf[i]
		img.Pix[j+1] = d.buf[i+1]
		img.Pix[j+2] = d.buf[i+2]
		img.Pix[j+3] = 0xff
	}

	frame := Frame{Index: d.count * d.stride, Image: img}
	d.count++
	return frame, nil
}

// Close stops ffmpeg if it is still running and waits for it to exit
func (d *FFmpegDecoder) Close() error {
	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	d.done = true
	d.reap(true)
	return nil
}

// reap waits for ffmpeg exactly once, killing it first if asked
func (d *FFmpegDecoder) reap(kill bool) error {
	if d.waited {
		return d.waitErr
	}
	if kill {
		_ = d.cmd.Process.Kill()
	}
	d.waited = true
	d.waitErr = d.cmd.Wait()
	return d.waitErr
}

// parseRate parses ffprobe rates such as "30000/1001" or "25"
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	dv, err := strconv.ParseFloat(den, 64)
	if err != nil || dv == 0 {
		return 0
	}
	return n / dv
}
