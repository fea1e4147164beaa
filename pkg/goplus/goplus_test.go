package goplus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitGroup_PanicDoesNotLeak(t *testing.T) {
	g := NewWaitGroup()
	var ran atomic.Int32

	g.Go(func() { panic("boom") })
	g.Go(func() { ran.Add(1) })
	g.Wait()

	assert.Equal(t, int32(1), ran.Load())
	assert.Zero(t, g.Running())
}

func TestRecoverWith(t *testing.T) {
	var got any
	func() {
		defer RecoverWith(func(r any) { got = r })
		panic("rollback")
	}()
	assert.Equal(t, "rollback", got)
}
