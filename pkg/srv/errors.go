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

package srv

import (
	"fmt"
)

// ErrGetAddr returned when we can not get the address and port of the peer that sent a packet
type ErrGetAddr struct{}

func (e ErrGetAddr) Error() string {
	return "Error while getting peer address and port"
}

// ErrBind returned when the local UDP port can not be bound
type ErrBind struct {
	Addr string
	Err  error
}

func (e ErrBind) Error() string {
	return fmt.Sprintf("Error while binding %s: %s", e.Addr, e.Err)
}

func (e ErrBind) Unwrap() error {
	return e.Err
}

// ErrZeroInterval returned when two datagrams arrive with the same timestamp
// and no frequency can be derived
type ErrZeroInterval struct{}

func (e ErrZeroInterval) Error() string {
	return "Zero interval between datagrams"
}
