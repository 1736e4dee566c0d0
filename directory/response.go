package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dashpay/fixedpeers/fixedlist"
	"github.com/dashpay/fixedpeers/peerdb"
)

const (
	// statusOK is the only status for which the directory body is used.
	statusOK = "OK"

	// portCheckOpen is the port check result of a reachable peer.
	portCheckOpen = "open"
)

var (
	// ErrMalformedResponse is returned when the directory body is not
	// valid JSON or misses required fields.
	ErrMalformedResponse = errors.New("malformed directory response")

	// ErrBadStatus is returned when the directory reports a status other
	// than OK.
	ErrBadStatus = errors.New("directory status not OK")
)

// response is the top level document served by the directory.
type response struct {
	Status *string `json:"status"`
	Data   *struct {
		Masternodes *[]masternode `json:"masternodes"`
	} `json:"data"`
}

// masternode is a single directory entry. Pointers are used to tell absent
// fields apart from zero values.
type masternode struct {
	IP            *string   `json:"MasternodeIP"`
	Port          *uint16   `json:"MasternodePort"`
	Portcheck     portcheck `json:"Portcheck"`
	ActiveSeconds *int64    `json:"MasternodeActiveSeconds"`
	Protocol      *int32    `json:"MasternodeProtocol"`
}

// portcheck is the directory's reachability verdict for an entry. The
// directory serves false instead of an object for nodes it never checked.
type portcheck struct {
	Result      string
	CountryCode string

	// present is set once the field was seen in the document.
	present bool
}

// UnmarshalJSON accepts either a port check object or false/null.
func (p *portcheck) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("false")) ||
		bytes.Equal(trimmed, []byte("null")) {

		*p = portcheck{
			CountryCode: peerdb.UnknownCountryCode,
			present:     true,
		}
		return nil
	}

	var v struct {
		Result      string `json:"Result"`
		CountryCode string `json:"CountryCode"`
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	if v.CountryCode == "" {
		v.CountryCode = peerdb.UnknownCountryCode
	}

	*p = portcheck{
		Result:      v.Result,
		CountryCode: v.CountryCode,
		present:     true,
	}

	return nil
}

// ParseResult is the outcome of parsing a directory snapshot.
type ParseResult struct {
	// Peers holds one record per usable entry, in snapshot order.
	Peers []peerdb.PeerRecord

	// Skipped counts entries whose address is not IPv4.
	Skipped int
}

// ParseResponse decodes a directory snapshot into peer records.
func ParseResponse(r io.Reader) (*ParseResult, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.Status == nil {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}
	if *resp.Status != statusOK {
		return nil, fmt.Errorf("%w: status=%q", ErrBadStatus,
			*resp.Status)
	}
	if resp.Data == nil || resp.Data.Masternodes == nil {
		return nil, fmt.Errorf("%w: missing data.masternodes",
			ErrMalformedResponse)
	}

	result := &ParseResult{
		Peers: make([]peerdb.PeerRecord, 0, len(*resp.Data.Masternodes)),
	}
	for i, mn := range *resp.Data.Masternodes {
		if err := mn.validate(); err != nil {
			return nil, fmt.Errorf("%w: masternode %d: %v",
				ErrMalformedResponse, i, err)
		}

		ipInt, err := fixedlist.EncodeIPv4(*mn.IP)
		if err != nil {
			log.Debugf("Skipping masternode %d: %v", i, err)
			result.Skipped++

			continue
		}

		result.Peers = append(result.Peers, peerdb.PeerRecord{
			IP:            *mn.IP,
			IPInt:         ipInt,
			Port:          *mn.Port,
			Reachable:     mn.Portcheck.Result == portCheckOpen,
			CountryCode:   mn.Portcheck.CountryCode,
			ActiveSeconds: *mn.ActiveSeconds,
			Protocol:      *mn.Protocol,
		})
	}

	return result, nil
}

// validate checks that every required field was present.
func (m *masternode) validate() error {
	switch {
	case m.IP == nil:
		return errors.New("missing MasternodeIP")

	case m.Port == nil:
		return errors.New("missing MasternodePort")

	case !m.Portcheck.present:
		return errors.New("missing Portcheck")

	case m.ActiveSeconds == nil:
		return errors.New("missing MasternodeActiveSeconds")

	case m.Protocol == nil:
		return errors.New("missing MasternodeProtocol")
	}

	return nil
}
