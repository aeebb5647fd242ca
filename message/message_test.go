package message

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	require.Equal(t, Hash("physics"), Hash("physics"))
	require.NotEqual(t, Hash("physics"), Hash("render"))

	addr := Addr("/level/player", "collisionobject")
	require.Equal(t, Hash("/level/player"), addr.Path)
	require.Equal(t, Hash("collisionobject"), addr.Fragment)
}

func TestSocketPostDispatch(t *testing.T) {
	s := NewSocket("physics", 8)
	sender := Addr("/a", "co")
	receiver := Addr("/b", "co")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Post(Envelope{Sender: sender, Receiver: receiver, Payload: i}))
	}
	require.Equal(t, 3, s.Len())

	var got []int
	n := s.Dispatch(func(e Envelope) {
		require.Equal(t, sender, e.Sender)
		require.Equal(t, receiver, e.Receiver)
		got = append(got, e.Payload.(int))
	})
	require.Equal(t, 3, n)
	require.Equal(t, []int{0, 1, 2}, got)
	require.Equal(t, 0, s.Len())
}

func TestSocketFull(t *testing.T) {
	s := NewSocket("physics", 2)
	require.NoError(t, s.Post(Envelope{Payload: 1}))
	require.NoError(t, s.Post(Envelope{Payload: 2}))
	require.ErrorIs(t, s.Post(Envelope{Payload: 3}), ErrFull)
	require.Equal(t, 2, s.Len())

	s.Dispatch(func(Envelope) {})
	require.NoError(t, s.Post(Envelope{Payload: 4}))
}

func TestSocketDispatchBoundary(t *testing.T) {
	s := NewSocket("physics", 8)
	require.NoError(t, s.Post(Envelope{Payload: "first"}))

	var firstPass []string
	n := s.Dispatch(func(e Envelope) {
		firstPass = append(firstPass, e.Payload.(string))
		// Replies posted mid-dispatch belong to the next pass.
		require.NoError(t, s.Post(Envelope{Payload: "reply"}))
	})
	require.Equal(t, 1, n)
	require.Equal(t, []string{"first"}, firstPass)
	require.Equal(t, 1, s.Len())

	var secondPass []string
	n = s.Dispatch(func(e Envelope) {
		secondPass = append(secondPass, e.Payload.(string))
	})
	require.Equal(t, 1, n)
	require.Equal(t, []string{"reply"}, secondPass)
	require.Equal(t, 0, s.Len())
}

func TestSocketDefaultCapacity(t *testing.T) {
	s := NewSocket("physics", 0)
	for i := 0; i < DefaultCapacity; i++ {
		require.NoError(t, s.Post(Envelope{Payload: i}))
	}
	require.ErrorIs(t, s.Post(Envelope{}), ErrFull)
}

func TestSocketConcurrentPost(t *testing.T) {
	s := NewSocket("physics", 100)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				require.NoError(t, s.Post(Envelope{Payload: i}))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 100, s.Len())
	require.Equal(t, 100, s.Dispatch(func(Envelope) {}))
}
