package fixedpeers

import (
	"context"
	"fmt"

	"github.com/dashpay/fixedpeers/directory"
	"github.com/dashpay/fixedpeers/discovery"
	"github.com/dashpay/fixedpeers/fixedlist"
	"github.com/dashpay/fixedpeers/healthcheck"
	"github.com/dashpay/fixedpeers/peerdb"
	"github.com/lightningnetwork/lnd/clock"
)

// FixedList is the persisted fixed peer list.
type FixedList interface {
	// Path returns the location of the list.
	Path() string

	// Read returns the addresses currently in the list.
	Read() ([]string, error)

	// UpdateAndSwap atomically replaces the list with addrs.
	UpdateAndSwap(addrs []string) error
}

// A compile-time check to ensure fixedlist.File implements FixedList.
var _ FixedList = (*fixedlist.File)(nil)

// UpdaterConfig holds the dependencies and parameters of an Updater.
type UpdaterConfig struct {
	// Source provides the masternode directory.
	Source directory.Source

	// Prober checks listed peers the directory does not vouch for.
	Prober healthcheck.Prober

	// List is the fixed peer list that is validated and rewritten.
	List FixedList

	// Port is the peer port every selected peer must use.
	Port uint16

	// MinProtocol is the lowest protocol version of a selected peer.
	MinProtocol int32

	// TargetSize is the number of peers the list aims for.
	TargetSize int

	// DryRun computes the new list without writing it.
	DryRun bool

	// MetricsFile, if set, receives the run metrics in the Prometheus
	// text format.
	MetricsFile string

	// Clock stamps the run metrics. It defaults to the system clock.
	Clock clock.Clock
}

// RunSummary describes a completed update run.
type RunSummary struct {
	// Load describes the directory snapshot the run was based on.
	Load *directory.LoadSummary

	// Previous is the de-duplicated list the run started from.
	Previous []string

	// Validated are the previous entries that are still alive, capped at
	// the target size.
	Validated []string

	// Failed is the number of previous entries that did not validate.
	Failed int

	// Selected are the newly selected peers.
	Selected []string

	// Peers is the resulting list.
	Peers []string

	// Written is true if the list file was replaced.
	Written bool
}

// Updater keeps a fixed peer list current.
type Updater struct {
	cfg UpdaterConfig
}

// NewUpdater creates a new Updater.
func NewUpdater(cfg UpdaterConfig) *Updater {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Updater{cfg: cfg}
}

// NewUpdaterFromConfig creates an Updater from a validated configuration.
func NewUpdaterFromConfig(cfg *Config) (*Updater, error) {
	source, err := directory.ChooseSource(&directory.Config{
		CacheFile: cfg.Directory.CacheFile,
		URL:       cfg.Directory.URL,
		Timeout:   cfg.Directory.Timeout,
		SaveCache: cfg.Directory.SaveCache,
	})
	if err != nil {
		return nil, err
	}

	clk := clock.NewDefaultClock()

	return NewUpdater(UpdaterConfig{
		Source: source,
		Prober: healthcheck.NewTCPProber(
			cfg.Peers.Port, cfg.Peers.ProbeTimeout,
		),
		List:        fixedlist.NewFile(cfg.PlistPath, cfg.ArchiveDir, clk),
		Port:        cfg.Peers.Port,
		MinProtocol: cfg.Peers.MinProtocol,
		TargetSize:  cfg.Peers.TargetSize,
		DryRun:      cfg.DryRun,
		MetricsFile: cfg.MetricsFile,
		Clock:       clk,
	}), nil
}

// loadStore creates a fresh peer store holding the current directory.
func (u *Updater) loadStore(ctx context.Context) (*peerdb.Store,
	*directory.LoadSummary, error) {

	store, err := peerdb.NewStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	summary, err := directory.NewLoader(u.cfg.Source).Populate(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	return store, summary, nil
}

func (u *Updater) selector(store *peerdb.Store) *discovery.RankingSelector {
	return discovery.NewRankingSelector(discovery.SelectorConfig{
		Port:        u.cfg.Port,
		MinProtocol: u.cfg.MinProtocol,
	}, store)
}

// validateList reads the current list, drops repeated entries and validates
// the rest against the store.
func (u *Updater) validateList(ctx context.Context,
	store *peerdb.Store) ([]string, *healthcheck.ValidationResult, error) {

	listed, err := u.cfg.List.Read()
	if err != nil {
		return nil, nil, err
	}

	previous := dedupe(listed)
	if len(previous) != len(listed) {
		log.Warnf("Dropped %d repeated entries from %v",
			len(listed)-len(previous), u.cfg.List.Path())
	}

	log.Infof("Validating %d fixed peers from %v", len(previous),
		u.cfg.List.Path())

	validator := healthcheck.NewValidator(healthcheck.ValidatorConfig{
		Cache:  store,
		Prober: u.cfg.Prober,
	})
	result, err := validator.Validate(ctx, previous)
	if err != nil {
		return nil, nil, err
	}

	return previous, result, nil
}

// Run loads the directory, validates the current list, tops it up with the
// best eligible peers and writes the result. The list is left untouched if
// any step before the write fails.
func (u *Updater) Run(ctx context.Context) (*RunSummary, error) {
	store, load, err := u.loadStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	previous, result, err := u.validateList(ctx, store)
	if err != nil {
		return nil, err
	}

	validated := result.Passed()
	if len(validated) > u.cfg.TargetSize {
		log.Infof("Keeping %d of %d validated peers", u.cfg.TargetSize,
			len(validated))

		validated = validated[:u.cfg.TargetSize]
	}

	need := u.cfg.TargetSize - len(validated)
	log.Infof("Need %d more peers", need)

	exclude := make(map[string]struct{}, len(validated))
	for _, addr := range validated {
		exclude[addr] = struct{}{}
	}

	selected, err := u.selector(store).SelectPeers(ctx, need, exclude)
	if err != nil {
		return nil, fmt.Errorf("unable to select peers: %w", err)
	}

	peers := make([]string, 0, len(validated)+len(selected))
	peers = append(peers, validated...)
	peers = append(peers, selected...)

	summary := &RunSummary{
		Load:      load,
		Previous:  previous,
		Validated: validated,
		Failed:    result.NumFailed(),
		Selected:  selected,
		Peers:     peers,
	}

	if u.cfg.DryRun {
		log.Infof("Dry run, not writing %d peers to %v", len(peers),
			u.cfg.List.Path())
	} else {
		if err := u.cfg.List.UpdateAndSwap(peers); err != nil {
			return nil, fmt.Errorf("unable to write fixed peers: %w",
				err)
		}
		summary.Written = true

		log.Infof("Wrote %d peers to %v", len(peers), u.cfg.List.Path())
	}

	if u.cfg.MetricsFile != "" {
		metrics := newRunMetrics()
		metrics.observe(summary, u.cfg.Clock.Now())
		if err := metrics.writeTextfile(u.cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("unable to write metrics: %w",
				err)
		}
	}

	return summary, nil
}

// Validate loads the directory and validates the current list without
// changing it.
func (u *Updater) Validate(ctx context.Context) (
	*healthcheck.ValidationResult, error) {

	store, _, err := u.loadStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	_, result, err := u.validateList(ctx, store)

	return result, err
}

// Rank loads the directory and returns the count best peers in the order
// they would be added to an empty list.
func (u *Updater) Rank(ctx context.Context,
	count int) ([]peerdb.PeerRecord, error) {

	store, _, err := u.loadStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	eligible, err := store.EligiblePeers(ctx, peerdb.EligibilityQuery{
		Port:        u.cfg.Port,
		MinProtocol: u.cfg.MinProtocol,
	})
	if err != nil {
		return nil, err
	}

	byIP := make(map[string]peerdb.PeerRecord, len(eligible))
	for _, peer := range eligible {
		if _, ok := byIP[peer.IP]; !ok {
			byIP[peer.IP] = peer
		}
	}

	addrs := discovery.DiversifyByCountry(eligible, count, nil)
	peers := make([]peerdb.PeerRecord, 0, len(addrs))
	for _, addr := range addrs {
		peers = append(peers, byIP[addr])
	}

	return peers, nil
}

// dedupe returns addrs without repeated entries, keeping the first
// occurrence of each.
func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	unique := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		unique = append(unique, addr)
	}

	return unique
}
