package media

import (
	"bytes"
	"fmt"
	"io"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RawStream reads fixed-size raw frames decoded by an ffmpeg process over a
// pipe. One instance serves a single sequential scan and must be closed.
type RawStream struct {
	Width  int
	Height int
	frame  []byte
	reader *io.PipeReader
	errc   chan error
}

// bytesPerPixel by pix_fmt supported here.
var pixFmtSize = map[string]int{
	"gray":  1,
	"rgb24": 3,
}

// OpenRawStream starts decoding [start, end] of input into raw frames of
// the given pixel format, scaled to width x height. The returned stream
// yields frames in presentation order until EOF.
func OpenRawStream(input string, start, end float64, width, height int, pixFmt string) (*RawStream, error) {
	bpp, ok := pixFmtSize[pixFmt]
	if !ok {
		return nil, fmt.Errorf("unsupported pixel format %q", pixFmt)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	pr, pw := io.Pipe()
	errc := make(chan error, 1)

	stream := ffmpeg.Input(input, ffmpeg.KwArgs{"ss": start, "t": end - start}).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": pixFmt,
			"vf":      fmt.Sprintf("scale=%d:%d", width, height),
		}).
		WithOutput(pw, io.Discard)

	go func() {
		err := stream.Run()
		pw.CloseWithError(err)
		errc <- err
	}()

	return &RawStream{
		Width:  width,
		Height: height,
		frame:  make([]byte, width*height*bpp),
		reader: pr,
		errc:   errc,
	}, nil
}

// Next returns the next frame's pixel data. The returned slice is reused
// between calls; callers needing to retain a frame must copy it. Returns
// io.EOF when the stream is exhausted and io.ErrUnexpectedEOF when the
// decoder stopped mid-frame.
func (s *RawStream) Next() ([]byte, error) {
	if _, err := io.ReadFull(s.reader, s.frame); err != nil {
		return nil, err
	}
	return s.frame, nil
}

// Close tears down the pipe and waits for the decoder to exit.
func (s *RawStream) Close() error {
	s.reader.Close()
	return <-s.errc
}

// ExtractFrames grabs up to count representative JPEG frames spread across
// the clip: first, middle and last for count=3. Short clips yield fewer
// frames; a zero-duration probe yields just the first frame.
func ExtractFrames(input string, count int) ([][]byte, error) {
	info, err := Probe(input)
	if err != nil {
		return nil, err
	}

	timestamps := frameTimestamps(info.Duration, count)

	var frames [][]byte
	for _, ts := range timestamps {
		buf := bytes.NewBuffer(nil)
		err := ffmpeg.Input(input, ffmpeg.KwArgs{"ss": ts}).
			Output("pipe:", ffmpeg.KwArgs{
				"vframes": 1,
				"format":  "image2",
				"vcodec":  "mjpeg",
			}).
			WithOutput(buf, io.Discard).
			Run()
		if err != nil || buf.Len() == 0 {
			continue
		}
		frames = append(frames, buf.Bytes())
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", input)
	}
	return frames, nil
}

// frameTimestamps spreads count sample points over a duration, pinning the
// first to zero and the last just short of the end.
func frameTimestamps(duration float64, count int) []float64 {
	if duration <= 0 || count <= 1 {
		return []float64{0}
	}
	if duration < 1.0 {
		return []float64{0}
	}

	last := duration - 0.1
	if count == 2 {
		return []float64{0, last}
	}

	ts := make([]float64, 0, count)
	step := last / float64(count-1)
	for i := 0; i < count; i++ {
		ts = append(ts, step*float64(i))
	}
	return ts
}
