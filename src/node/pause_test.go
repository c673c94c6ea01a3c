package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseRelease(t *testing.T) {
	p := pause{}
	ran := []bool{}

	p.run(func(cancelled bool) { ran = append(ran, cancelled) })
	require.Len(t, ran, 1)

	d := p.engage()
	assert.Same(t, d, p.engage())

	p.run(func(cancelled bool) { ran = append(ran, cancelled) })
	p.run(func(cancelled bool) { ran = append(ran, cancelled) })
	assert.Len(t, ran, 1)

	select {
	case <-d.Done():
		t.Fatal("settled before release")
	default:
	}

	p.release()
	assert.Equal(t, []bool{false, false, false}, ran)
	<-d.Done()
	assert.NoError(t, d.Err())

	// releasing twice is harmless
	p.release()
}

func TestPauseCancel(t *testing.T) {
	p := pause{}
	ran := []bool{}

	d := p.engage()
	p.run(func(cancelled bool) { ran = append(ran, cancelled) })
	p.cancel()

	assert.Equal(t, []bool{true}, ran)
	<-d.Done()
	assert.Equal(t, ErrPauseCancelled, d.Err())
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	id1, ch1 := bus.Subscribe(1)
	_, ch2 := bus.Subscribe(4)

	bus.Publish(Event{Type: StagedChanged})
	// ch1 is full, the event is dropped for it only
	bus.Publish(Event{Type: PauseChanged, Paused: true})

	assert.Equal(t, StagedChanged, (<-ch1).Type)
	assert.Equal(t, StagedChanged, (<-ch2).Type)
	assert.Equal(t, PauseChanged, (<-ch2).Type)

	bus.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok)

	bus.Close()
	_, ok = <-ch2
	assert.False(t, ok)

	text, err := VisibilityChanged.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "visibility", string(text))
}
