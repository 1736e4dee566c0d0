package fixedlist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidAddress is returned when an address is not a dotted IPv4 quad.
var ErrInvalidAddress = errors.New("not an IPv4 address")

// EncodeIPv4 returns the big-endian integer form of a dotted IPv4 address,
// the representation the client stores in its fixed peer list.
func EncodeIPv4(addr string) (uint32, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	return binary.BigEndian.Uint32(ip4), nil
}

// DecodeIPv4 is the inverse of EncodeIPv4.
func DecodeIPv4(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return net.IPv4(b[0], b[1], b[2], b[3]).String()
}
