package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dashpay/fixedpeers/peerdb"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func rec(ip, country string, active int64) peerdb.PeerRecord {
	return peerdb.PeerRecord{
		IP:            ip,
		Port:          DefaultPeerPort,
		Reachable:     true,
		CountryCode:   country,
		ActiveSeconds: active,
		Protocol:      DefaultMinProtocol,
	}
}

// mockSource serves a fixed candidate list and records the query.
type mockSource struct {
	peers []peerdb.PeerRecord
	err   error
	calls int
	query peerdb.EligibilityQuery
}

func (m *mockSource) EligiblePeers(_ context.Context,
	q peerdb.EligibilityQuery) ([]peerdb.PeerRecord, error) {

	m.calls++
	m.query = q

	return m.peers, m.err
}

// TestDiversifyByCountry checks the round-robin order across countries.
func TestDiversifyByCountry(t *testing.T) {
	t.Parallel()

	// A has 5 entries, B has 3 and C has 1, interleaved by uptime.
	ranked := []peerdb.PeerRecord{
		rec("a1", "A", 90), rec("b1", "B", 85), rec("a2", "A", 80),
		rec("c1", "C", 75), rec("a3", "A", 70), rec("b2", "B", 65),
		rec("a4", "A", 60), rec("b3", "B", 55), rec("a5", "A", 50),
	}

	tests := []struct {
		name    string
		count   int
		exclude map[string]struct{}
		want    []string
	}{
		{
			name:  "zero count",
			count: 0,
			want:  nil,
		},
		{
			name:  "negative count",
			count: -3,
			want:  nil,
		},
		{
			name:  "one full pass plus one",
			count: 4,
			want:  []string{"a1", "b1", "c1", "a2"},
		},
		{
			name:  "drains everything",
			count: 100,
			want: []string{
				"a1", "b1", "c1", "a2", "b2", "a3", "b3", "a4",
				"a5",
			},
		},
		{
			name:    "excluded addresses are skipped",
			count:   4,
			exclude: map[string]struct{}{"a1": {}, "c1": {}},
			want:    []string{"a2", "b1", "a3", "b2"},
		},
		{
			name:  "empty supply",
			count: 4,
			exclude: map[string]struct{}{
				"a1": {}, "a2": {}, "a3": {}, "a4": {}, "a5": {},
				"b1": {}, "b2": {}, "b3": {}, "c1": {},
			},
			want: []string{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := DiversifyByCountry(ranked, tc.count, tc.exclude)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestDiversifyTiesKeepDiscoveryOrder checks equal sized groups stay in the
// order their best peer appeared.
func TestDiversifyTiesKeepDiscoveryOrder(t *testing.T) {
	t.Parallel()

	ranked := []peerdb.PeerRecord{
		rec("de1", "DE", 50), rec("us1", "US", 40), rec("fr1", "FR", 30),
		rec("us2", "US", 20), rec("de2", "DE", 10),
	}

	got := DiversifyByCountry(ranked, 5, nil)
	require.Equal(
		t, []string{"de1", "us1", "fr1", "de2", "us2"}, got,
	)
}

// TestDiversifyDropsRepeats makes sure an address listed twice is only
// selected once.
func TestDiversifyDropsRepeats(t *testing.T) {
	t.Parallel()

	ranked := []peerdb.PeerRecord{
		rec("1.1.1.1", "US", 50), rec("1.1.1.1", "US", 40),
		rec("2.2.2.2", "US", 30),
	}

	got := DiversifyByCountry(ranked, 3, nil)
	require.Equal(t, []string{"1.1.1.1", "2.2.2.2"}, got)
}

// TestSelectPeers runs the selector against a mocked store.
func TestSelectPeers(t *testing.T) {
	t.Parallel()

	source := &mockSource{
		peers: []peerdb.PeerRecord{
			rec("10.0.0.1", "US", 500), rec("10.0.0.2", "US", 300),
			rec("10.0.0.3", "DE", 100),
		},
	}
	cfg := SelectorConfig{Port: 19999, MinProtocol: 70210}
	selector := NewRankingSelector(cfg, source)

	ctx := context.Background()

	// A non-positive count never touches the store.
	got, err := selector.SelectPeers(ctx, 0, nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, source.calls)

	got, err = selector.SelectPeers(ctx, 3, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.3", "10.0.0.2"}, got)
	require.Equal(t, peerdb.EligibilityQuery{
		Port:        19999,
		MinProtocol: 70210,
	}, source.query)

	source.err = errors.New("store closed")
	_, err = selector.SelectPeers(ctx, 3, nil)
	require.ErrorIs(t, err, source.err)
}

// TestDiversifyProperties checks the selection invariants on random input.
func TestDiversifyProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		numPeers := rapid.IntRange(0, 60).Draw(t, "num_peers")
		countries := []string{"US", "DE", "FR", "NL", "SG"}

		ranked := make([]peerdb.PeerRecord, 0, numPeers)
		for i := 0; i < numPeers; i++ {
			// Draw from a small address space to get repeats.
			ip := fmt.Sprintf("10.0.0.%d", rapid.IntRange(0, 40).Draw(
				t, fmt.Sprintf("ip_%d", i),
			))
			country := rapid.SampledFrom(countries).Draw(
				t, fmt.Sprintf("country_%d", i),
			)
			ranked = append(ranked, rec(ip, country, int64(numPeers-i)))
		}

		exclude := make(map[string]struct{})
		numExcluded := rapid.IntRange(0, 10).Draw(t, "num_excluded")
		for i := 0; i < numExcluded; i++ {
			ip := fmt.Sprintf("10.0.0.%d", rapid.IntRange(0, 40).Draw(
				t, fmt.Sprintf("excluded_%d", i),
			))
			exclude[ip] = struct{}{}
		}

		count := rapid.IntRange(-5, 70).Draw(t, "count")
		got := DiversifyByCountry(ranked, count, exclude)

		if count <= 0 {
			if len(got) != 0 {
				t.Fatalf("expected empty result, got %v", got)
			}
			return
		}

		if len(got) > count {
			t.Fatalf("got %d addresses, wanted at most %d",
				len(got), count)
		}

		available := make(map[string]struct{})
		for _, p := range ranked {
			if _, ok := exclude[p.IP]; !ok {
				available[p.IP] = struct{}{}
			}
		}

		// Short results only happen when supply runs out.
		if len(got) < count && len(got) != len(available) {
			t.Fatalf("got %d of %d available addresses",
				len(got), len(available))
		}

		seen := make(map[string]struct{})
		for _, ip := range got {
			if _, ok := exclude[ip]; ok {
				t.Fatalf("excluded address %v selected", ip)
			}
			if _, ok := seen[ip]; ok {
				t.Fatalf("address %v selected twice", ip)
			}
			seen[ip] = struct{}{}
		}
	})
}
