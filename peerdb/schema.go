package peerdb

// schema creates the masternode relation. A fresh in-memory database is used
// for every run, so there are no migrations.
const schema = `
CREATE TABLE IF NOT EXISTS masternodes (
	ip TEXT NOT NULL,
	ip_int INTEGER NOT NULL,
	port INTEGER NOT NULL,
	portcheck BOOLEAN NOT NULL,
	countrycode TEXT NOT NULL,
	activeseconds INTEGER NOT NULL,
	protocol INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS index_ip ON masternodes (ip);
CREATE INDEX IF NOT EXISTS index_port ON masternodes (port);
`

const insertPeer = `
INSERT INTO masternodes (
	ip, ip_int, port, portcheck, countrycode, activeseconds, protocol
) VALUES (?, ?, ?, ?, ?, ?, ?)`

// fetchByIP prefers a reachable row, then the longest uptime, when a snapshot
// lists the same address more than once.
const fetchByIP = `
SELECT ip, ip_int, port, portcheck, countrycode, activeseconds, protocol
FROM masternodes
WHERE ip = ?
ORDER BY portcheck DESC, activeseconds DESC, rowid ASC
LIMIT 1`

const eligiblePeers = `
SELECT ip, ip_int, port, portcheck, countrycode, activeseconds, protocol
FROM masternodes
WHERE port = ? AND portcheck = 1 AND countrycode != ? AND protocol >= ?
ORDER BY activeseconds DESC, rowid ASC`

const countPeers = `SELECT COUNT(*) FROM masternodes`
