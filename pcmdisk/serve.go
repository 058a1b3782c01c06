package pcmdisk

import (
	"context"
	"errors"

	"github.com/ja7ad/pcmsim/blockio"
)

// Serve pulls requests from q until ctx is cancelled or q reports
// ErrQueueClosed, dispatching each one to d and reporting its completion.
// It is the thin loop a real block-layer registration (out of scope) would
// drive instead; the CLI exerciser and dispatcher tests use it directly
// against a blockio.MemQueue.
func (d *Device) Serve(ctx context.Context, q blockio.Queue) error {
	for {
		req, err := q.Next(ctx)
		if err != nil {
			if errors.Is(err, blockio.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		err = d.Dispatch(req)
		q.Complete(req, err)
	}
}
