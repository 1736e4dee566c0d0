package healthcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/dashpay/fixedpeers/peerdb"
)

// ReachabilityCache holds the directory's port check verdicts.
type ReachabilityCache interface {
	FetchByIP(ctx context.Context, ip string) (*peerdb.PeerRecord, error)
}

// Verdict is the outcome of validating a single address.
type Verdict struct {
	// Addr is the validated address.
	Addr string

	// Alive is true if the address passed validation.
	Alive bool

	// Cached is true if the directory already vouched for the address
	// and no probe was made.
	Cached bool

	// Err is the probe error of a failed address.
	Err error
}

// ValidationResult is the outcome of validating a fixed peer list.
type ValidationResult struct {
	// Verdicts holds one entry per address, in input order.
	Verdicts []Verdict
}

// Passed returns the addresses that passed, in input order.
func (r *ValidationResult) Passed() []string {
	var passed []string
	for _, v := range r.Verdicts {
		if v.Alive {
			passed = append(passed, v.Addr)
		}
	}

	return passed
}

// NumFailed returns the number of addresses that failed.
func (r *ValidationResult) NumFailed() int {
	return len(r.Verdicts) - len(r.Passed())
}

// ValidatorConfig holds the dependencies of a Validator.
type ValidatorConfig struct {
	// Cache answers from the freshly loaded directory.
	Cache ReachabilityCache

	// Prober checks addresses the directory could not vouch for.
	Prober Prober
}

// Validator confirms that the addresses of a fixed peer list are still
// alive.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a new Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks every address in order. An address passes if the
// directory reported it reachable, otherwise it is probed exactly once.
func (v *Validator) Validate(ctx context.Context,
	addrs []string) (*ValidationResult, error) {

	result := &ValidationResult{
		Verdicts: make([]Verdict, 0, len(addrs)),
	}
	for _, addr := range addrs {
		verdict, err := v.validateAddr(ctx, addr)
		if err != nil {
			return nil, err
		}

		if verdict.Alive {
			log.Infof("Validating %v ... OK", addr)
		} else {
			log.Infof("Validating %v ... Failed: %v", addr,
				verdict.Err)
		}

		result.Verdicts = append(result.Verdicts, *verdict)
	}

	log.Infof("Validation done. Passed: %d Failed: %d",
		len(result.Verdicts)-result.NumFailed(), result.NumFailed())

	return result, nil
}

func (v *Validator) validateAddr(ctx context.Context,
	addr string) (*Verdict, error) {

	peer, err := v.cfg.Cache.FetchByIP(ctx, addr)
	switch {
	case err == nil && peer.Reachable:
		return &Verdict{Addr: addr, Alive: true, Cached: true}, nil

	case err != nil && !errors.Is(err, peerdb.ErrPeerNotFound):
		return nil, fmt.Errorf("unable to look up %v: %w", addr, err)
	}

	if err := v.cfg.Prober.Probe(ctx, addr); err != nil {
		return &Verdict{Addr: addr, Err: err}, nil
	}

	return &Verdict{Addr: addr, Alive: true}, nil
}
