package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Parallel()

	g := NewGate()
	for range 3 {
		require.False(t, g.IsOpen())
		select {
		case <-g.Wait():
			require.FailNow(t, "closed gate should block")
		default:
		}
		g.Set(false)
	}

	waitCh := g.Wait()
	for range 3 {
		g.Set(true)
		require.True(t, g.IsOpen())
		select {
		case <-g.Wait():
		default:
			require.FailNow(t, "open gate should not block")
		}
	}
	select {
	case <-waitCh:
	default:
		require.FailNow(t, "channel taken before opening should be released")
	}

	g.Set(false)
	select {
	case <-g.Wait():
		require.FailNow(t, "reclosed gate should block")
	default:
	}
}

func TestNewOpenGate(t *testing.T) {
	t.Parallel()

	g := NewOpenGate()
	require.True(t, g.IsOpen())
	select {
	case <-g.Wait():
	default:
		require.FailNow(t, "open gate should not block")
	}
}
