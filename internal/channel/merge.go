package channel

import "sync"

// Merge fans in all channels into a single channel. The returned channel is
// closed once every input channel is closed.
func Merge[T any](cs ...<-chan T) <-chan T {
	out := make(chan T)
	wg := sync.WaitGroup{}
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range c {
				out <- v
			}
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
