package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversInRegistrationOrder(t *testing.T) {
	var e Emitter
	var got []string

	e.On("cache", func(p any) { got = append(got, "first:"+p.(string)) })
	e.On("cache", func(p any) { got = append(got, "second:"+p.(string)) })
	e.On("reset", func(p any) { got = append(got, "reset") })

	e.Emit("cache", "x")

	assert.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestEmitter_Off(t *testing.T) {
	var e Emitter
	calls := 0
	id := e.On("fetch", func(any) { calls++ })

	assert.Equal(t, 1, e.ListenerCount("fetch"))
	assert.True(t, e.Off("fetch", id))
	assert.False(t, e.Off("fetch", id), "second Off is a no-op")
	assert.Equal(t, 0, e.ListenerCount("fetch"))

	e.Emit("fetch", nil)
	assert.Equal(t, 0, calls)
}

func TestEmitter_ReentrantEmitIsQueued(t *testing.T) {
	var e Emitter
	var order []string

	e.On("a", func(any) {
		order = append(order, "a:start")
		e.Emit("b", nil)
		order = append(order, "a:end")
	})
	e.On("b", func(any) { order = append(order, "b") })

	e.Emit("a", nil)

	// b runs after a's listener returns, not inside it.
	assert.Equal(t, []string{"a:start", "a:end", "b"}, order)
}

func TestEmitter_OffDuringDelivery(t *testing.T) {
	var e Emitter
	var calls []string
	var second ListenerID

	e.On("x", func(any) {
		calls = append(calls, "first")
		e.Off("x", second)
	})
	second = e.On("x", func(any) { calls = append(calls, "second") })

	e.Emit("x", nil)
	e.Emit("x", nil)

	// The snapshot taken for the first event still includes the second listener.
	assert.Equal(t, []string{"first", "second", "first"}, calls)
}

func TestEmitter_PanickingListenerDoesNotStopDelivery(t *testing.T) {
	var e Emitter
	delivered := false

	e.On("x", func(any) { panic("boom") })
	e.On("x", func(any) { delivered = true })

	require.NotPanics(t, func() { e.Emit("x", nil) })
	assert.True(t, delivered)

	// The emitter is still usable afterwards.
	delivered = false
	e.Emit("x", nil)
	assert.True(t, delivered)
}

func TestEmitter_ListenersNeverOverlap(t *testing.T) {
	var e Emitter
	var mu sync.Mutex
	active, maxActive, total := 0, 0, 0

	e.On("x", func(any) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit("x", nil)
		}()
	}
	wg.Wait()

	// Queued events are drained by whichever goroutine was already delivering;
	// once every Emit has returned and no delivery is running, all were seen.
	e.Emit("x", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 51, total)
}

func TestEmitter_EmitThenRunsAfterListenersBeforeNextEvent(t *testing.T) {
	var e Emitter
	var order []string

	e.On("cache", func(any) {
		order = append(order, "cache listener")
		e.Emit("reload", nil)
	})
	e.On("reload", func(any) { order = append(order, "reload listener") })

	e.EmitThen("cache", nil, func() { order = append(order, "then") })

	assert.Equal(t, []string{"cache listener", "then", "reload listener"}, order)
}

func TestEmitter_EmitThenWithoutListeners(t *testing.T) {
	var e Emitter
	ran := false

	e.EmitThen("cache", nil, func() { ran = true })

	assert.True(t, ran)
}

func TestEmitter_EmitThenQueuedBehindOtherGoroutine(t *testing.T) {
	var e Emitter
	entered := make(chan struct{})
	unblock := make(chan struct{})
	e.On("reload", func(any) {
		close(entered)
		<-unblock
	})

	var mu sync.Mutex
	var order []string
	e.On("cache", func(any) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "cache listener")
	})

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		e.Emit("reload", nil)
	}()
	<-entered

	done := make(chan struct{})
	e.EmitThen("cache", nil, func() {
		mu.Lock()
		order = append(order, "then")
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
		t.Fatal("follow-up ran while its event was still queued")
	default:
	}

	close(unblock)
	<-drained
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, []string{"cache listener", "then"}, order)
}
