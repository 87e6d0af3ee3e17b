package queue

import "time"

// rollingWindowSize is the number of recent completions averaged into the
// processing-duration metric.
const rollingWindowSize = 100

// rollingWindow keeps the most recent processing durations in a ring buffer.
type rollingWindow struct {
	samples [rollingWindowSize]time.Duration
	next    int
	count   int
}

func (w *rollingWindow) add(d time.Duration) {
	w.samples[w.next] = d
	w.next = (w.next + 1) % rollingWindowSize
	if w.count < rollingWindowSize {
		w.count++
	}
}

func (w *rollingWindow) averageMillis() float64 {
	if w.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < w.count; i++ {
		total += w.samples[i]
	}
	return float64(total.Milliseconds()) / float64(w.count)
}
