/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sim

import (
	"time"

	"github.com/gammazero/deque"
)

type sample struct {
	timestamp int64
	value     float64
}

// metricWindow is a time-bounded series of metric samples backing alarm
// evaluation. Samples older than the window span fall off the front.
type metricWindow struct {
	pool       deque.Deque[sample]
	spanMillis int64

	getCurrentTimestamp func() int64
}

func newMetricWindow(span time.Duration) *metricWindow {
	return &metricWindow{
		spanMillis:          span.Milliseconds(),
		getCurrentTimestamp: func() int64 { return time.Now().UnixMilli() },
	}
}

func (w *metricWindow) expire(currentTimestamp int64) {
	for w.pool.Len() > 0 {
		if w.pool.Front().timestamp+w.spanMillis >= currentTimestamp {
			break
		}
		w.pool.PopFront()
	}
}

func (w *metricWindow) Append(value float64) {
	currentTimestamp := w.getCurrentTimestamp()
	w.expire(currentTimestamp)
	w.pool.PushBack(sample{currentTimestamp, value})
}

// Sum returns the total of all fresh samples.
func (w *metricWindow) Sum() float64 {
	w.expire(w.getCurrentTimestamp())
	total := 0.0
	for i := 0; i < w.pool.Len(); i++ {
		total += w.pool.At(i).value
	}
	return total
}

// Average returns the mean of fresh samples and whether any exist.
func (w *metricWindow) Average() (float64, bool) {
	w.expire(w.getCurrentTimestamp())
	if w.pool.Len() == 0 {
		return 0, false
	}
	return w.Sum() / float64(w.pool.Len()), true
}

// Count returns the number of fresh samples.
func (w *metricWindow) Count() int {
	w.expire(w.getCurrentTimestamp())
	return w.pool.Len()
}
