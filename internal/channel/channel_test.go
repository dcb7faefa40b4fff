package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	ch1 := make(chan int)
	ch2 := make(chan int)
	ch3 := make(chan int)
	go func() {
		defer close(ch1)
		ch1 <- 1
		ch1 <- 2
	}()
	go func() {
		defer close(ch2)
		ch2 <- 3
	}()
	go func() {
		defer close(ch3)
		ch3 <- 4
		ch3 <- 5
		ch3 <- 6
	}()

	results := []int{}
	for v := range Merge(ch1, ch2, ch3) {
		results = append(results, v)
	}
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, results)
}

func TestMergeImmediateTick(t *testing.T) {
	t.Parallel()

	immediateCh := make(chan time.Time, 1)
	immediateCh <- time.Now()
	close(immediateCh)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	select {
	case <-Merge(immediateCh, ticker.C):
	case <-time.After(time.Second):
		require.FailNow(t, "immediate value should be forwarded")
	}
}
