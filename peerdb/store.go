package peerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/davecgh/go-spew/spew"
	_ "modernc.org/sqlite" // Register relevant drivers.
)

const (
	// sqliteOptionPrefix is the string prefix sqlite uses to set various
	// options. This is used in the following format:
	//   * sqliteOptionPrefix || option_name = option_value.
	sqliteOptionPrefix = "_pragma"

	// memoryDSN opens a private in-memory database.
	memoryDSN = ":memory:"
)

// ErrPeerNotFound is returned when no record exists for an address.
var ErrPeerNotFound = errors.New("peer not found")

// Store is the in-memory relation of directory records. It is built fresh
// for every run and must be closed once the run is done.
type Store struct {
	db *sql.DB
}

// NewStore opens a new in-memory sqlite database and creates the masternode
// schema.
func NewStore(ctx context.Context) (*Store, error) {
	sqliteOptions := make(url.Values)
	sqliteOptions.Add(sqliteOptionPrefix, "foreign_keys=on")
	sqliteOptions.Add(sqliteOptionPrefix, "temp_store=memory")

	dsn := fmt.Sprintf("%v?%v", memoryDSN, sqliteOptions.Encode())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" gets its own database, so the pool
	// is pinned to a single connection that is never recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to create peer schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertPeers adds the records in a single transaction.
func (s *Store) InsertPeers(ctx context.Context, peers []PeerRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// Rollback is a no-op once the transaction was committed.
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertPeer)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range peers {
		p := &peers[i]

		log.Tracef("Inserting peer: %v", newLogClosure(func() string {
			return spew.Sdump(p)
		}))

		_, err := stmt.ExecContext(
			ctx, p.IP, int64(p.IPInt), int64(p.Port), p.Reachable,
			p.CountryCode, p.ActiveSeconds, int64(p.Protocol),
		)
		if err != nil {
			return fmt.Errorf("unable to insert peer %v: %w", p.IP,
				err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Debugf("Inserted %d peers", len(peers))

	return nil
}

// FetchByIP returns the record stored for the exact address. ErrPeerNotFound
// is returned if the directory did not list the address.
func (s *Store) FetchByIP(ctx context.Context, ip string) (*PeerRecord,
	error) {

	row := s.db.QueryRowContext(ctx, fetchByIP, ip)

	peer, err := scanPeer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeerNotFound
	}
	if err != nil {
		return nil, err
	}

	return peer, nil
}

// EligiblePeers returns every reachable, geolocated peer that listens on the
// queried port and speaks at least the queried protocol version. The result
// is ordered by uptime, longest first; equal uptimes keep snapshot order.
func (s *Store) EligiblePeers(ctx context.Context,
	q EligibilityQuery) ([]PeerRecord, error) {

	rows, err := s.db.QueryContext(
		ctx, eligiblePeers, int64(q.Port), UnknownCountryCode,
		int64(q.MinProtocol),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []PeerRecord
	for rows.Next() {
		peer, err := scanPeer(rows)
		if err != nil {
			return nil, err
		}

		peers = append(peers, *peer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debugf("Found %d eligible peers (port=%d, min_protocol=%d)",
		len(peers), q.Port, q.MinProtocol)

	return peers, nil
}

// NumPeers returns the number of stored records.
func (s *Store) NumPeers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, countPeers).Scan(&n)

	return n, err
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPeer(row scanner) (*PeerRecord, error) {
	var (
		p        PeerRecord
		ipInt    int64
		port     int64
		protocol int64
	)
	err := row.Scan(
		&p.IP, &ipInt, &port, &p.Reachable, &p.CountryCode,
		&p.ActiveSeconds, &protocol,
	)
	if err != nil {
		return nil, err
	}

	p.IPInt = uint32(ipInt)
	p.Port = uint16(port)
	p.Protocol = int32(protocol)

	return &p, nil
}
