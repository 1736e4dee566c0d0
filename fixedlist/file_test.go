package fixedlist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const xmlList = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<array>
	<integer>16909060</integer>
	<integer>3232235786</integer>
</array>
</plist>
`

// TestReadExistingList reads a list in the format shipped with the client.
func TestReadExistingList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "FixedPeers.plist")
	require.NoError(t, os.WriteFile(path, []byte(xmlList), 0o600))

	addrs, err := NewFile(path, "", nil).Read()
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4", "192.168.1.10"}, addrs)
}

// TestReadMissingList treats an absent list as an empty one.
func TestReadMissingList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "FixedPeers.plist")
	addrs, err := NewFile(path, "", nil).Read()
	require.NoError(t, err)
	require.Empty(t, addrs)

	_, err = NewFile("", "", nil).Read()
	require.ErrorIs(t, err, ErrNoListFile)
}

// TestDecodeMalformed covers lists that are not arrays of uint32.
func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "not a plist",
			raw:  "hello there",
		},
		{
			name: "dict root",
			raw: `<plist version="1.0"><dict><key>a</key>` +
				`<integer>1</integer></dict></plist>`,
		},
		{
			name: "negative entry",
			raw: `<plist version="1.0"><array>` +
				`<integer>-1</integer></array></plist>`,
		},
		{
			name: "entry too large",
			raw: `<plist version="1.0"><array>` +
				`<integer>4294967296</integer></array></plist>`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tc.raw))
			require.ErrorIs(t, err, ErrMalformedList)
		})
	}
}

// TestUpdateAndSwap writes a list, reads it back and checks the previous
// version got archived under the current time.
func TestUpdateAndSwap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "FixedPeers.plist")
	require.NoError(t, os.WriteFile(path, []byte(xmlList), 0o600))

	archiveDir := filepath.Join(t.TempDir(), "archives")
	now := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

	list := NewFile(path, archiveDir, clock.NewTestClock(now))
	want := []string{"10.0.0.1", "8.8.8.8", "1.2.3.4"}
	require.NoError(t, list.UpdateAndSwap(want))

	got, err := list.Read()
	require.NoError(t, err)
	require.Equal(t, want, got)

	// The temp file must be gone after the swap.
	_, err = os.Stat(filepath.Join(dir, DefaultTempFileName))
	require.True(t, os.IsNotExist(err))

	// The old list is archived byte for byte.
	archives, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	require.Equal(t, "FixedPeers.plist-2026-03-14-15-09-26.535",
		archives[0].Name())

	archived, err := os.ReadFile(filepath.Join(
		archiveDir, archives[0].Name(),
	))
	require.NoError(t, err)
	require.Equal(t, xmlList, string(archived))
}

// TestUpdateAndSwapNoArchive writes a fresh list without archiving and
// leaves nothing but the list next to it.
func TestUpdateAndSwapNoArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "FixedPeers.plist")

	list := NewFile(path, "", nil)
	require.NoError(t, list.UpdateAndSwap(nil))

	got, err := list.Read()
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, list.UpdateAndSwap([]string{"9.9.9.9"}))
	got, err = list.Read()
	require.NoError(t, err)
	require.Equal(t, []string{"9.9.9.9"}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "FixedPeers.plist", entries[0].Name())
}

// TestUpdateAndSwapInvalidAddress leaves the old list untouched when one of
// the new addresses cannot be encoded.
func TestUpdateAndSwapInvalidAddress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "FixedPeers.plist")
	require.NoError(t, os.WriteFile(path, []byte(xmlList), 0o600))

	err := NewFile(path, "", nil).UpdateAndSwap(
		[]string{"1.1.1.1", "2001:db8::1"},
	)
	require.ErrorIs(t, err, ErrInvalidAddress)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, xmlList, string(raw))

	_, err = os.Stat(filepath.Join(dir, DefaultTempFileName))
	require.True(t, os.IsNotExist(err))
}
