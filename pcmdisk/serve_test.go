package pcmdisk

import (
	"context"
	"testing"
	"time"

	"github.com/ja7ad/pcmsim/blockio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_DispatchesSubmittedRequestsAndReportsCompletion(t *testing.T) {
	d := newTestDevice(1)
	q := blockio.NewMemQueue()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- d.Serve(ctx, q) }()

	write := make([]byte, 512)
	write[0] = 0x42
	q.Submit(blockio.Request{
		Direction: blockio.Write,
		Segments:  []blockio.Segment{{Data: write, StartSector: 0}},
	})

	require.Eventually(t, func() bool {
		_, _, ok := q.LastComplete()
		return ok
	}, time.Second, time.Millisecond)

	_, err, _ := q.LastComplete()
	assert.NoError(t, err)

	cancel()
	<-serveErr
}
