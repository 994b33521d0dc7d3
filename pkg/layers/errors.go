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

package layers

import (
	"fmt"
)

// ErrFormat returned when a datagram is not a valid RC frame or a ControlState
// can not be represented as one
type ErrFormat struct {
	What string
	// Field is the index of the offending field or -1 if the frame as a whole is wrong
	Field int
	Err   error
}

func (e ErrFormat) Error() string {
	if e.Field >= 0 {
		return fmt.Sprintf("Wrong RC frame format: %s: field %d", e.What, e.Field)
	}
	return fmt.Sprintf("Wrong RC frame format: %s", e.What)
}

func (e ErrFormat) Unwrap() error {
	return e.Err
}

func errFrame(what string) ErrFormat {
	return ErrFormat{What: what, Field: -1}
}
