package healthcheck

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dashpay/fixedpeers/peerdb"
	"github.com/stretchr/testify/require"
)

// mockCache is a ReachabilityCache backed by a map.
type mockCache struct {
	peers map[string]peerdb.PeerRecord
	err   error
}

func (m *mockCache) FetchByIP(_ context.Context,
	ip string) (*peerdb.PeerRecord, error) {

	if m.err != nil {
		return nil, m.err
	}

	peer, ok := m.peers[ip]
	if !ok {
		return nil, peerdb.ErrPeerNotFound
	}

	return &peer, nil
}

// mockProber records every probe and fails the addresses in down.
type mockProber struct {
	down   map[string]struct{}
	probed []string
}

func (m *mockProber) Probe(_ context.Context, addr string) error {
	m.probed = append(m.probed, addr)
	if _, ok := m.down[addr]; ok {
		return errors.New("connection refused")
	}

	return nil
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cache := &mockCache{
		peers: map[string]peerdb.PeerRecord{
			"10.0.0.1": {IP: "10.0.0.1", Reachable: true},
			"10.0.0.2": {IP: "10.0.0.2", Reachable: false},
		},
	}
	prober := &mockProber{
		down: map[string]struct{}{
			"10.0.0.3": {},
		},
	}
	validator := NewValidator(ValidatorConfig{
		Cache:  cache,
		Prober: prober,
	})

	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}
	result, err := validator.Validate(context.Background(), addrs)
	require.NoError(t, err)

	// Only the address vouched for by the directory skips the probe, and
	// every other address is probed exactly once.
	require.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.4"},
		prober.probed)

	require.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.4"},
		result.Passed())
	require.Equal(t, 1, result.NumFailed())

	require.Len(t, result.Verdicts, len(addrs))
	require.True(t, result.Verdicts[0].Cached)
	require.False(t, result.Verdicts[1].Cached)
	require.Error(t, result.Verdicts[2].Err)
}

func TestValidateEmpty(t *testing.T) {
	t.Parallel()

	prober := &mockProber{}
	validator := NewValidator(ValidatorConfig{
		Cache:  &mockCache{},
		Prober: prober,
	})

	result, err := validator.Validate(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, result.Passed())
	require.Zero(t, result.NumFailed())
	require.Empty(t, prober.probed)
}

func TestValidateStoreError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("database is closed")
	prober := &mockProber{}
	validator := NewValidator(ValidatorConfig{
		Cache:  &mockCache{err: storeErr},
		Prober: prober,
	})

	_, err := validator.Validate(
		context.Background(), []string{"10.0.0.1"},
	)
	require.ErrorIs(t, err, storeErr)
	require.Empty(t, prober.probed)
}

func TestTCPProber(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, listener.Close())
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	prober := NewTCPProber(uint16(port), time.Second)
	require.NoError(t, prober.Probe(context.Background(), "127.0.0.1"))

	// Grab a free port and release it so nothing is listening on it.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	prober = NewTCPProber(uint16(closedPort), time.Second)
	require.Error(t, prober.Probe(context.Background(), "127.0.0.1"))
}

func TestTCPProberClosesConnection(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	var dialed string
	prober := &TCPProber{
		Port:    9999,
		Timeout: time.Second,
		Dial: func(_ context.Context, _, address string) (net.Conn,
			error) {

			dialed = address
			return client, nil
		},
	}
	require.NoError(t, prober.Probe(context.Background(), "192.0.2.7"))
	require.Equal(t, "192.0.2.7:9999", dialed)

	// Writing to a closed pipe fails, proving the probe closed it.
	_, err := client.Write([]byte{0})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
