package smr

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"conctree/infra/logutil"
)

// Guard is a reader's critical section. A Guard belongs to the goroutine
// that entered it and must not be shared.
type Guard interface {
	// Protect publishes h as in use in the given slot. Under RCU this is a
	// no-op because the whole section is protected.
	Protect(slot int, h *Header)
	// Retain keeps the node currently in slot protected until Exit even if
	// the slot is reused.
	Retain(slot int)
	// Exit ends the critical section. Calling it twice is a no-op; any
	// other method called after Exit panics.
	Exit()
}

// Scheme is a memory reclamation strategy.
type Scheme interface {
	Enter() Guard
	// Retire hands over a node in StateRemoved. dispose runs exactly once,
	// after no Guard can reach the node.
	Retire(h *Header, dispose func())
	// Collect disposes what is already safe without waiting and returns the
	// number of nodes disposed. It returns 0 if another collection is running.
	Collect() int
	// ForceDispose blocks until every node retired before the call has been
	// disposed.
	ForceDispose()
	// Pending returns the number of retired nodes not yet disposed.
	Pending() int
	Kind() Kind
	// Close disposes everything pending. Enter panics afterwards.
	Close() error
}

// Kind selects a Scheme implementation.
type Kind uint8

const (
	KindRCU Kind = iota
	KindHP
)

func (k Kind) String() string {
	switch k {
	case KindRCU:
		return "rcu"
	case KindHP:
		return "hp"
	default:
		return "unknown"
	}
}

// ParseKind accepts "rcu" or "hp", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rcu", "epoch":
		return KindRCU, nil
	case "hp", "hazard":
		return KindHP, nil
	}
	return 0, errors.Newf("smr: unknown scheme %q", s)
}

const (
	defaultThreshold = 256
	defaultRingSize  = 1 << 12
	defaultWarnAfter = 5 * time.Second
)

// Options configures a Scheme. The zero value is usable.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	// Threshold is the pending count at which Retire triggers a collection.
	Threshold int
	// RingSize is the lock-free retire buffer capacity, a power of two.
	RingSize uint64
	// WarnAfter is how long ForceDispose waits before logging a warning
	// about readers that hold it up.
	WarnAfter time.Duration
}

func (o *Options) adjust(kind Kind) {
	o.Logger = logutil.Adjust(o.Logger, "smr", kind.String())
	if o.Threshold <= 0 {
		o.Threshold = defaultThreshold
	}
	if o.RingSize == 0 {
		o.RingSize = defaultRingSize
	}
	if o.WarnAfter <= 0 {
		o.WarnAfter = defaultWarnAfter
	}
}

// New builds the Scheme for kind.
func New(kind Kind, opts Options) (Scheme, error) {
	if opts.RingSize != 0 && opts.RingSize&(opts.RingSize-1) != 0 {
		return nil, errors.Newf("smr: ring size %d is not a power of two", opts.RingSize)
	}
	switch kind {
	case KindRCU:
		return NewRCU(opts), nil
	case KindHP:
		return NewHP(opts), nil
	}
	return nil, errors.Newf("smr: unknown scheme kind %d", kind)
}

func checkSlot(slot int) {
	if slot < 0 || slot >= HazardSlots {
		panic(errors.AssertionFailedf("smr: hazard slot %d out of range [0,%d)", slot, HazardSlots))
	}
}
