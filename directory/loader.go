package directory

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dashpay/fixedpeers/peerdb"
)

// PeerInserter is the part of the peer store the loader writes to.
type PeerInserter interface {
	InsertPeers(ctx context.Context, peers []peerdb.PeerRecord) error
}

// LoadSummary describes a completed load.
type LoadSummary struct {
	// Source is the name of the source the snapshot came from.
	Source string

	// Loaded is the number of records inserted into the store.
	Loaded int

	// Skipped is the number of entries that could not be stored.
	Skipped int
}

// Loader fills a peer store from a directory source.
type Loader struct {
	source Source
}

// NewLoader creates a loader reading from source.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Populate fetches and parses the snapshot and inserts every record into the
// store. Nothing is inserted if the snapshot is unusable. A source that
// keeps snapshots is only handed one after it parsed successfully.
func (l *Loader) Populate(ctx context.Context,
	store PeerInserter) (*LoadSummary, error) {

	log.Infof("Loading masternodes list from %v", l.source.Name())

	body, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load masternodes list from "+
			"%v: %w", l.source.Name(), err)
	}
	defer body.Close()

	var (
		r   io.Reader = body
		raw []byte
	)
	saver, saveSnapshot := l.source.(SnapshotSaver)
	if saveSnapshot {
		raw, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("unable to read masternodes list "+
				"from %v: %w", l.source.Name(), err)
		}
		r = bytes.NewReader(raw)
	}

	result, err := ParseResponse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse masternodes list from "+
			"%v: %w", l.source.Name(), err)
	}

	log.Infof("Importing %d masternodes", len(result.Peers))
	if result.Skipped > 0 {
		log.Warnf("Skipped %d masternodes without an IPv4 address",
			result.Skipped)
	}

	if err := store.InsertPeers(ctx, result.Peers); err != nil {
		return nil, fmt.Errorf("unable to import masternodes: %w", err)
	}

	if saveSnapshot {
		if err := saver.SaveSnapshot(raw); err != nil {
			return nil, err
		}
	}

	return &LoadSummary{
		Source:  l.source.Name(),
		Loaded:  len(result.Peers),
		Skipped: result.Skipped,
	}, nil
}
