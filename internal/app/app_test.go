package app

import (
	"testing"
)

func TestRequestShutdownIsIdempotent(t *testing.T) {
	a := &App{shutdownReq: make(chan struct{})}

	a.RequestShutdown()
	a.RequestShutdown() // second call must not panic on the closed channel

	select {
	case <-a.shutdownReq:
	default:
		t.Fatal("shutdown channel still open")
	}
}
