package stream

import (
	"context"
	"fmt"
	"time"

	"pitchcam/pipeline"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrSourceExhausted ends a stream whose source stopped producing frames
var ErrSourceExhausted = errors.New("frame source exhausted")

// Run pulls frames from src, processes them in sess and writes them to sink
// until the source fails, the sink fails, or ctx is done. Every frame is fully
// written before the next one is read.
func Run(ctx context.Context, src Source, sess *pipeline.Session, sink Sink, stats *pipeline.Stats) error {
	if stats == nil {
		stats = pipeline.NewStats()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	perfTicker := time.NewTicker(pipeline.ReportInterval)
	defer perfTicker.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			debugMsg("STREAM", fmt.Sprintf("Client gone after %d frames", frames), sess.ID())
			return ctx.Err()
		case <-perfTicker.C:
			stats.Report(sess.ID())
		default:
		}

		readStart := time.Now()
		if ok := src.Read(&frame); !ok {
			debugMsg("STREAM", fmt.Sprintf("Source failed after %d frames", frames), sess.ID())
			return ErrSourceExhausted
		}

		// Skip empty or non-BGR frames
		if frame.Empty() || frame.Type() != gocv.MatTypeCV8UC3 {
			stats.UpdateSkipped()
			continue
		}

		capturedAt := time.Now()
		stats.UpdateCapture(capturedAt.Sub(readStart))

		res := sess.ProcessFrame(&frame, capturedAt)
		stats.UpdateProcess(time.Since(capturedAt), res.Detected)

		encodeStart := time.Now()
		if err := sink.WriteFrame(frame); err != nil {
			return errors.Wrap(err, "writing frame")
		}
		stats.UpdateEncode(time.Since(encodeStart))
		frames++
	}
}
