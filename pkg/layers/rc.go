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
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"sigs.k8s.io/yaml"
)

const (
	// RCLayerNum identifies the layer
	RCLayerNum = 1990
	// RCFrameSize is the length of every RC frame including the trailing CR
	RCFrameSize = 62
	// RCFieldCount includes the header and terminator tokens
	RCFieldCount = 18
	RCHeader     = "$RC"
	RCTerminator = "#\r"
	RCSeparator  = ":"
	// AxisWidth is the width of space padded axis fields
	AxisWidth  = 5
	NumButtons = 8
)

// Values that keep an encoded frame at RCFrameSize bytes
const (
	AxisMin   = -9999
	AxisMax   = 99999
	ButtonMin = 0
	ButtonMax = 9
)

type Joystick struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Z      int `json:"z"`
	Button int `json:"button"`
}

// ControlState is one sample of the 6-axis remote control.
// Frequency is measured by the receiver and never travels on the wire.
type ControlState struct {
	Joystick1 Joystick        `json:"joystick1"`
	Joystick2 Joystick        `json:"joystick2"`
	Buttons   [NumButtons]int `json:"buttons"`
	Frequency float64         `json:"frequency"`
}

// NewControlState returns the all-zero state, e.g. for initializing an actuator
// before the first frame arrives.
func NewControlState(frequency float64) *ControlState {
	return &ControlState{Frequency: frequency}
}

// DecodeControlState parses a single RC frame. It returns ErrFormat if the
// frame is malformed.
func DecodeControlState(data []byte, frequency float64) (*ControlState, error) {
	rc := &RCLayer{}
	if err := rc.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	cs := rc.ControlState
	cs.Frequency = frequency
	return &cs, nil
}

// Encode serializes the state to an RC frame
func (cs *ControlState) Encode() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	rc := &RCLayer{ControlState: *cs}
	if err := rc.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks that every field fits into the fixed frame
func (cs *ControlState) Validate() error {
	for i, v := range cs.fields() {
		if axisFields[i] {
			if v < AxisMin || v > AxisMax {
				return ErrFormat{What: fmt.Sprintf("axis value %d out of range %d..%d", v, AxisMin, AxisMax), Field: i + 1}
			}
			continue
		}
		if v < ButtonMin || v > ButtonMax {
			return ErrFormat{What: fmt.Sprintf("button value %d out of range %d..%d", v, ButtonMin, ButtonMax), Field: i + 1}
		}
	}
	return nil
}

// Equal reports whether both states carry the same wire fields. Frequency is ignored.
func (cs *ControlState) Equal(other *ControlState) bool {
	return cs.Joystick1 == other.Joystick1 && cs.Joystick2 == other.Joystick2 && cs.Buttons == other.Buttons
}

func (cs *ControlState) String() string {
	data, err := cs.Encode()
	if err != nil {
		return fmt.Sprintf("frequency=%.2fHz   Error=%s", cs.Frequency, err)
	}
	return fmt.Sprintf("frequency=%.2fHz   Data=%q", cs.Frequency, data)
}

// YAML renders the state for humans
func (cs *ControlState) YAML() string {
	result, err := yaml.Marshal(cs)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("---\n%s", string(result))
}

// axisFields marks which of the 16 data fields are padded axis values
var axisFields = [16]bool{
	true, true, true, false,
	true, true, true, false,
}

// fields returns the 16 data fields in wire order
func (cs *ControlState) fields() [16]int {
	return [16]int{
		cs.Joystick1.X, cs.Joystick1.Y, cs.Joystick1.Z, cs.Joystick1.Button,
		cs.Joystick2.X, cs.Joystick2.Y, cs.Joystick2.Z, cs.Joystick2.Button,
		cs.Buttons[0], cs.Buttons[1], cs.Buttons[2], cs.Buttons[3],
		cs.Buttons[4], cs.Buttons[5], cs.Buttons[6], cs.Buttons[7],
	}
}

func (cs *ControlState) setFields(f [16]int) {
	cs.Joystick1 = Joystick{X: f[0], Y: f[1], Z: f[2], Button: f[3]}
	cs.Joystick2 = Joystick{X: f[4], Y: f[5], Z: f[6], Button: f[7]}
	copy(cs.Buttons[:], f[8:])
}

// RCLayer is the ASCII remote control frame
//
//	$RC:AAAAA:BBBBB:CCCCC:D:EEEEE:FFFFF:GGGGG:H:I:J:K:L:M:N:O:P:#\r
//
// A-C and E-G are joystick axes padded to 5 characters, D and H are joystick
// buttons, I-P are the discrete buttons.
type RCLayer struct {
	layers.BaseLayer
	ControlState
}

var RCLayerType = gopacket.RegisterLayerType(RCLayerNum,
	gopacket.LayerTypeMetadata{Name: "RCLayerType", Decoder: gopacket.DecodeFunc(decodeRCLayer)})

// LayerType returns the type of the RC layer in the layer catalog
func (rc *RCLayer) LayerType() gopacket.LayerType {
	return RCLayerType
}

func (rc *RCLayer) CanDecode() gopacket.LayerClass {
	return RCLayerType
}

func (rc *RCLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// DecodeFromBytes attempts to decode the byte slice as an RC frame.
// The header and terminator are checked before any number is parsed.
func (rc *RCLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) != RCFrameSize {
		if len(data) < RCFrameSize {
			df.SetTruncated()
		}
		return errFrame(fmt.Sprintf("length %d, must be %d", len(data), RCFrameSize))
	}

	for i, b := range data {
		if b > unicode.MaxASCII {
			return errFrame(fmt.Sprintf("non-ASCII byte 0x%02x at offset %d", b, i))
		}
	}

	splitted := strings.Split(string(data), RCSeparator)
	if len(splitted) != RCFieldCount {
		return errFrame(fmt.Sprintf("%d fields, must be %d", len(splitted), RCFieldCount))
	}
	if splitted[0] != RCHeader {
		return ErrFormat{What: fmt.Sprintf("wrong header %q", splitted[0]), Field: 0}
	}
	if splitted[RCFieldCount-1] != RCTerminator {
		return ErrFormat{What: fmt.Sprintf("wrong terminator %q", splitted[RCFieldCount-1]), Field: RCFieldCount - 1}
	}

	var values [16]int
	for i := range values {
		field := splitted[i+1]
		value, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return ErrFormat{What: fmt.Sprintf("not a number %q", field), Field: i + 1, Err: err}
		}
		values[i] = value
	}

	rc.BaseLayer = layers.BaseLayer{
		Contents: data,
		Payload:  []byte{},
	}
	rc.ControlState = ControlState{}
	rc.setFields(values)
	return nil
}

// SerializeTo writes the RC frame to the SerializeBuffer
func (rc *RCLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if err := rc.Validate(); err != nil {
		return err
	}

	var frame bytes.Buffer
	frame.WriteString(RCHeader)
	for i, v := range rc.fields() {
		frame.WriteString(RCSeparator)
		if axisFields[i] {
			fmt.Fprintf(&frame, "%*d", AxisWidth, v)
		} else {
			frame.WriteString(strconv.Itoa(v))
		}
	}
	frame.WriteString(RCSeparator)
	frame.WriteString(RCTerminator)

	if frame.Len() != RCFrameSize {
		return errFrame(fmt.Sprintf("encoded length %d, must be %d", frame.Len(), RCFrameSize))
	}

	out, err := b.AppendBytes(frame.Len())
	if err != nil {
		return err
	}
	copy(out, frame.Bytes())
	return nil
}

func decodeRCLayer(data []byte, p gopacket.PacketBuilder) error {
	rc := &RCLayer{}
	err := rc.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(rc)
	return nil
}
