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
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
)

type OutPacket struct {
	Data []byte
	*net.UDPAddr
}

// GetAddrPort returns the UDPAddr of the peer that sent the packet
func GetAddrPort(packet gopacket.Packet) (*net.UDPAddr, error) {
	meta := packet.Metadata()
	if len(meta.CaptureInfo.AncillaryData) >= 1 {
		ancillary := meta.CaptureInfo.AncillaryData[0]
		udpAddr, ok := ancillary.(*net.UDPAddr)
		if !ok {
			return nil, ErrGetAddr{}
		}
		return udpAddr, nil
	}
	return nil, ErrGetAddr{}
}

// CaptureInfo describes a datagram read from the wire at the given time
func CaptureInfo(length int, addr net.Addr, timestamp time.Time) gopacket.CaptureInfo {
	ancillary := []interface{}{}
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		ancillary = append(ancillary, udpAddr)
	}
	return gopacket.CaptureInfo{
		Length:        length,
		CaptureLength: length,
		Timestamp:     timestamp,
		AncillaryData: ancillary,
	}
}

type Server struct {
	context.Context
	*config.Config
	*net.UDPAddr
	ChOut chan OutPacket
}

// ResolveUDPAddr resolves host and port, an empty host means all local addresses
func ResolveUDPAddr(host string, port int) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}
