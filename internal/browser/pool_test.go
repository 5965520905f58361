package browser

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testHandle(id int) *Handle {
	// A bare context is enough for assignment tests; no listener without a
	// chromedp context means no download events, which is fine here.
	return &Handle{id: id, ctx: context.Background(), downloads: make(chan Download, 1), log: zerolog.Nop()}
}

func TestPoolRoundRobin(t *testing.T) {
	p := NewPool([]*Handle{testHandle(0), testHandle(1), testHandle(2)})
	var got []int
	for range 7 {
		got = append(got, p.Next().ID())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	closed := 0
	h := testHandle(0)
	h.cancel = func() { closed++ }
	p := NewPool([]*Handle{h})
	p.Close()
	p.Close()
	h.Close()
	assert.Equal(t, 1, closed, "underlying surface must close exactly once")
}

func TestDrainDownloads(t *testing.T) {
	h := testHandle(0)
	h.downloads <- Download{GUID: "stale"}
	h.DrainDownloads()
	select {
	case d := <-h.Downloads():
		t.Fatalf("expected drained channel, got %v", d)
	default:
	}
}
