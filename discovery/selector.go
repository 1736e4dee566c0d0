package discovery

import (
	"context"
	"sort"

	"github.com/dashpay/fixedpeers/peerdb"
)

const (
	// DefaultPeerPort is the port fixed peers must listen on.
	DefaultPeerPort = 9999

	// DefaultMinProtocol is the lowest protocol version a fixed peer may
	// run.
	DefaultMinProtocol = 70208
)

// EligiblePeerSource returns the ranked candidates for selection.
type EligiblePeerSource interface {
	EligiblePeers(ctx context.Context,
		q peerdb.EligibilityQuery) ([]peerdb.PeerRecord, error)
}

// PeerSelector picks peers to add to the fixed list.
type PeerSelector interface {
	// SelectPeers returns at most count addresses, none of which are in
	// exclude.
	SelectPeers(ctx context.Context, count int,
		exclude map[string]struct{}) ([]string, error)
}

// SelectorConfig holds the eligibility criteria of the RankingSelector.
type SelectorConfig struct {
	// Port is the only port a selected peer may listen on.
	Port uint16

	// MinProtocol is the lowest protocol version a selected peer may
	// run.
	MinProtocol int32
}

// RankingSelector selects the longest running eligible peers while spreading
// the selection across as many countries as possible.
type RankingSelector struct {
	cfg    SelectorConfig
	source EligiblePeerSource
}

// A compile-time check to ensure RankingSelector implements PeerSelector.
var _ PeerSelector = (*RankingSelector)(nil)

// NewRankingSelector creates a selector drawing candidates from source.
func NewRankingSelector(cfg SelectorConfig,
	source EligiblePeerSource) *RankingSelector {

	return &RankingSelector{
		cfg:    cfg,
		source: source,
	}
}

// SelectPeers returns up to count eligible addresses that are not in
// exclude. Fewer addresses are returned if supply runs out.
func (r *RankingSelector) SelectPeers(ctx context.Context, count int,
	exclude map[string]struct{}) ([]string, error) {

	if count <= 0 {
		return nil, nil
	}

	candidates, err := r.source.EligiblePeers(ctx, peerdb.EligibilityQuery{
		Port:        r.cfg.Port,
		MinProtocol: r.cfg.MinProtocol,
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Selecting %d of %d eligible peers (%d excluded)", count,
		len(candidates), len(exclude))

	selected := DiversifyByCountry(candidates, count, exclude)
	if len(selected) < count {
		log.Warnf("Only %d eligible peers available, wanted %d",
			len(selected), count)
	}

	return selected, nil
}

// countryGroup is the queue of addresses of a single country.
type countryGroup struct {
	country string
	addrs   []string
}

// DiversifyByCountry picks up to count addresses from ranked, which must be
// ordered best first. Addresses are grouped by country, groups are ordered
// by size (largest first, ties in order of first appearance), and the groups
// are then drained round-robin one address at a time. Excluded and repeated
// addresses are dropped.
func DiversifyByCountry(ranked []peerdb.PeerRecord, count int,
	exclude map[string]struct{}) []string {

	if count <= 0 {
		return nil
	}

	var (
		groups  []*countryGroup
		byCode  = make(map[string]*countryGroup)
		seen    = make(map[string]struct{}, len(ranked))
		numAddr int
	)
	for _, p := range ranked {
		if _, ok := exclude[p.IP]; ok {
			continue
		}
		if _, ok := seen[p.IP]; ok {
			continue
		}
		seen[p.IP] = struct{}{}

		group, ok := byCode[p.CountryCode]
		if !ok {
			group = &countryGroup{country: p.CountryCode}
			byCode[p.CountryCode] = group
			groups = append(groups, group)
		}
		group.addrs = append(group.addrs, p.IP)
		numAddr++
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].addrs) > len(groups[j].addrs)
	})

	if numAddr < count {
		count = numAddr
	}

	result := make([]string, 0, count)
	for len(result) < count {
		remaining := groups[:0]
		for _, group := range groups {
			if len(result) == count {
				break
			}

			result = append(result, group.addrs[0])
			group.addrs = group.addrs[1:]

			if len(group.addrs) > 0 {
				remaining = append(remaining, group)
			}
		}
		groups = remaining
	}

	return result
}
