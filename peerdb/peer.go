package peerdb

import (
	"fmt"
	"time"
)

// UnknownCountryCode is the country code the directory reports for peers it
// could not geolocate.
const UnknownCountryCode = "__"

// PeerRecord is a single masternode entry of a directory snapshot.
type PeerRecord struct {
	// IP is the dotted IPv4 address of the peer.
	IP string

	// IPInt is the big-endian integer form of IP.
	IPInt uint32

	// Port is the advertised peer port.
	Port uint16

	// Reachable is the verdict of the directory's port check.
	Reachable bool

	// CountryCode is the two letter country of the peer, or
	// UnknownCountryCode.
	CountryCode string

	// ActiveSeconds is how long the peer has been active.
	ActiveSeconds int64

	// Protocol is the protocol version the peer reported.
	Protocol int32
}

// Uptime returns ActiveSeconds as a duration.
func (p *PeerRecord) Uptime() time.Duration {
	return time.Duration(p.ActiveSeconds) * time.Second
}

// String returns a short human readable form of the record.
func (p *PeerRecord) String() string {
	return fmt.Sprintf("%v:%d (country=%v, reachable=%v, protocol=%d, "+
		"active=%v)", p.IP, p.Port, p.CountryCode, p.Reachable,
		p.Protocol, p.Uptime())
}

// EligibilityQuery holds the filter applied when ranking peers.
type EligibilityQuery struct {
	// Port is the only port a peer may be listening on.
	Port uint16

	// MinProtocol is the lowest accepted protocol version.
	MinProtocol int32
}
