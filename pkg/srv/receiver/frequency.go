/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package receiver

import (
	"time"

	"jinr.ru/greenlab/go-rc6d/pkg/srv"
)

// FrequencyEstimator turns arrival timestamps into an instantaneous rate.
// It is owned by the receive loop and is not safe for concurrent use.
type FrequencyEstimator struct {
	previous time.Time
}

func NewFrequencyEstimator(start time.Time) *FrequencyEstimator {
	return &FrequencyEstimator{previous: start}
}

// Update returns the reciprocal of the time elapsed since the previous arrival.
// The arrival time is remembered even when an error is returned.
func (f *FrequencyEstimator) Update(now time.Time) (float64, error) {
	elapsed := now.Sub(f.previous)
	f.previous = now
	if elapsed <= 0 {
		return 0, srv.ErrZeroInterval{}
	}
	return 1 / elapsed.Seconds(), nil
}

func (f *FrequencyEstimator) Previous() time.Time {
	return f.previous
}
