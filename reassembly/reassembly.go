// Package reassembly rebuilds fragmented IPv4 datagrams.
//
// Fragments are merged with the BSD-Right policy (RFC 791): on overlap the
// earlier-arrived data wins and the new fragment is trimmed around it. Each
// flow is bounded in fragment count and reconstructed size, and stale flows
// are expired by a background sweep.
package reassembly

import (
	"container/list"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"firestige.xyz/netpacket/internal/metrics"
	"firestige.xyz/netpacket/ip"
)

const (
	minFragmentSize   = 1    // smallest useful fragment payload
	maxFragmentOffset = 8183 // largest offset (8-byte units) that can still fit a payload
	maxFragmentsHard  = 8192 // absolute per-flow cap, independent of config
)

var (
	// ErrFragmentInvalid is returned for fragments whose geometry cannot
	// belong to a well-formed datagram.
	ErrFragmentInvalid = errors.New("netpacket: invalid fragment")

	// ErrLimitExceeded is returned when a flow outgrows its fragment
	// count or reassembled size cap. The flow is evicted.
	ErrLimitExceeded = errors.New("netpacket: reassembly limit exceeded")

	// ErrRateLimited is returned when a source address exceeds its
	// per-window fragment allowance.
	ErrRateLimited = errors.New("netpacket: fragment rate limited")
)

// Config controls reassembler limits. Zero values pick the defaults noted
// per field.
type Config struct {
	MaxFragments      int           // per-flow fragment cap (default 100)
	MaxReassembleSize int           // reassembled payload cap in bytes (default 65535)
	Timeout           time.Duration // flow idle expiry (default 60s)

	MaxFragmentsPerSource int           // per-source allowance per window (0 disables limiting)
	RateLimitWindow       time.Duration // rate limit window (default 10s)

	Logger *logrus.Logger // defaults to logrus.StandardLogger
}

// flowKey identifies the datagram a fragment belongs to.
type flowKey struct {
	src   netip.Addr
	dst   netip.Addr
	proto ip.Protocol
	id    uint16
}

// fragment is one trimmed, copied piece of a datagram payload.
type fragment struct {
	offset  int
	length  int
	payload []byte
}

// flow accumulates fragments for one key, sorted by offset ascending.
type flow struct {
	mu            sync.Mutex
	frags         list.List // *fragment
	highest       int       // max(offset+length) seen, fixed by the final fragment
	current       int       // unique payload bytes accumulated
	finalReceived bool
	lastSeen      time.Time
}

// Reassembler merges IPv4 fragments back into whole payloads.
type Reassembler struct {
	mu      sync.Mutex
	flows   map[flowKey]*flow
	cfg     Config
	limiter *RateLimiter
	log     *logrus.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a reassembler and starts its expiry sweep. Call Close to stop
// the sweep.
func New(cfg Config) *Reassembler {
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = 100
	}
	if cfg.MaxReassembleSize <= 0 {
		cfg.MaxReassembleSize = ip.MaxDatagramSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	r := &Reassembler{
		flows: make(map[flowKey]*flow),
		cfg:   cfg,
		limiter: NewRateLimiter(RateLimiterConfig{
			MaxPerSource: cfg.MaxFragmentsPerSource,
			Window:       cfg.RateLimitWindow,
		}),
		log:  cfg.Logger,
		stop: make(chan struct{}),
	}

	go r.sweep()

	return r
}

// Close stops the expiry sweep. Safe to call more than once.
func (r *Reassembler) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Process feeds one decoded IPv4 header into the reassembler.
//
// Non-fragmented datagrams return their payload immediately with done=true;
// the slice still aliases the header's buffer. Fragments are copied, so the
// caller may reuse its buffer after Process returns. A completed reassembly
// returns the rebuilt payload (a fresh allocation) with done=true; an
// incomplete one returns (nil, false, nil).
func (r *Reassembler) Process(h ip.IPv4Header, now time.Time) (payload []byte, done bool, err error) {
	if !h.MoreFragments() && h.FragmentOffset() == 0 {
		return h.Payload(), true, nil
	}

	fragOff := int(h.FragmentOffset())
	byteOffset := fragOff * 8
	fragLen := len(h.Payload())

	if fragLen < minFragmentSize {
		metrics.FragmentsRejectedTotal.WithLabelValues("empty").Inc()
		return nil, false, fmt.Errorf("%w: empty payload at offset %d", ErrFragmentInvalid, byteOffset)
	}
	if fragOff > maxFragmentOffset {
		metrics.FragmentsRejectedTotal.WithLabelValues("offset").Inc()
		return nil, false, fmt.Errorf("%w: offset %d out of range", ErrFragmentInvalid, fragOff)
	}
	if byteOffset+fragLen > ip.MaxDatagramSize {
		metrics.FragmentsRejectedTotal.WithLabelValues("oversize").Inc()
		return nil, false, fmt.Errorf("%w: fragment ends at %d, beyond the datagram maximum",
			ErrFragmentInvalid, byteOffset+fragLen)
	}

	if r.limiter != nil && !r.limiter.Allow(h.Source(), now) {
		metrics.FragmentsRejectedTotal.WithLabelValues("rate").Inc()
		return nil, false, fmt.Errorf("%w: source %s", ErrRateLimited, h.Source())
	}

	key := flowKey{
		src:   h.Source(),
		dst:   h.Destination(),
		proto: h.Protocol(),
		id:    h.Identification(),
	}

	r.mu.Lock()
	fl, ok := r.flows[key]
	if !ok {
		fl = &flow{}
		r.flows[key] = fl
		metrics.ReassemblyActiveFlows.Inc()
	}
	r.mu.Unlock()

	// The caller's buffer may be recycled, keep our own copy.
	data := make([]byte, fragLen)
	copy(data, h.Payload())

	fl.mu.Lock()

	limit := r.cfg.MaxFragments
	if limit > maxFragmentsHard {
		limit = maxFragmentsHard
	}
	if fl.frags.Len() >= limit {
		fl.mu.Unlock()
		r.evict(key, "fragment count")
		metrics.FragmentsRejectedTotal.WithLabelValues("flow_limit").Inc()
		return nil, false, fmt.Errorf("%w: more than %d fragments for %s", ErrLimitExceeded, limit, key.src)
	}

	fl.lastSeen = now

	if !h.MoreFragments() {
		fl.finalReceived = true
		if end := byteOffset + fragLen; end > fl.highest {
			fl.highest = end
		}
	}

	fl.insert(&fragment{offset: byteOffset, length: fragLen, payload: data})

	if fl.finalReceived && fl.current >= fl.highest {
		size := fl.highest
		if size > r.cfg.MaxReassembleSize {
			fl.mu.Unlock()
			r.evict(key, "reassembled size")
			metrics.FragmentsRejectedTotal.WithLabelValues("size_limit").Inc()
			return nil, false, fmt.Errorf("%w: reassembled size %d over cap %d",
				ErrLimitExceeded, size, r.cfg.MaxReassembleSize)
		}
		out := fl.assemble()
		fl.mu.Unlock()
		r.evict(key, "")
		metrics.ReassembledDatagramsTotal.Inc()
		return out, true, nil
	}

	fl.mu.Unlock()
	return nil, false, nil
}

// ActiveFlows returns the number of flows currently holding fragments.
func (r *Reassembler) ActiveFlows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// insert adds frag in offset order, trimming it around existing data
// (BSD-Right). Caller holds fl.mu.
func (fl *flow) insert(frag *fragment) {
	end := frag.offset + frag.length
	if end > fl.highest && !fl.finalReceived {
		fl.highest = end
	}

	// First element at or past the new offset.
	var before *list.Element
	for e := fl.frags.Front(); e != nil; e = e.Next() {
		if e.Value.(*fragment).offset >= frag.offset {
			before = e
			break
		}
	}

	startAt := frag.offset
	if before != nil {
		if prev := before.Prev(); prev != nil {
			p := prev.Value.(*fragment)
			if pEnd := p.offset + p.length; pEnd > startAt {
				startAt = pEnd
			}
		}
	} else if fl.frags.Len() > 0 {
		last := fl.frags.Back().Value.(*fragment)
		if lastEnd := last.offset + last.length; lastEnd > startAt {
			startAt = lastEnd
		}
	}

	endAt := end
	if before != nil {
		if next := before.Value.(*fragment); next.offset < endAt {
			endAt = next.offset
		}
	}

	if startAt >= endAt {
		return // fully shadowed by earlier arrivals
	}

	trimmed := &fragment{
		offset:  startAt,
		length:  endAt - startAt,
		payload: frag.payload[startAt-frag.offset : endAt-frag.offset],
	}
	if before != nil {
		fl.frags.InsertBefore(trimmed, before)
	} else {
		fl.frags.PushBack(trimmed)
	}
	fl.current += trimmed.length
}

// assemble concatenates the fragments into one payload. Caller holds fl.mu.
func (fl *flow) assemble() []byte {
	out := make([]byte, fl.highest)
	for e := fl.frags.Front(); e != nil; e = e.Next() {
		f := e.Value.(*fragment)
		copy(out[f.offset:f.offset+f.length], f.payload)
	}
	return out
}

// evict drops a flow. A non-empty reason is logged.
func (r *Reassembler) evict(key flowKey, reason string) {
	r.mu.Lock()
	_, ok := r.flows[key]
	if ok {
		delete(r.flows, key)
		metrics.ReassemblyActiveFlows.Dec()
	}
	r.mu.Unlock()

	if ok && reason != "" {
		r.log.WithFields(logrus.Fields{
			"src":    key.src,
			"dst":    key.dst,
			"id":     key.id,
			"reason": reason,
		}).Warn("evicted fragment flow")
	}
}

// sweep drops flows whose fragments stopped arriving.
func (r *Reassembler) sweep() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}

		now := time.Now()
		expired := 0

		r.mu.Lock()
		for key, fl := range r.flows {
			fl.mu.Lock()
			stale := now.Sub(fl.lastSeen) > r.cfg.Timeout
			fl.mu.Unlock()
			if stale {
				delete(r.flows, key)
				expired++
			}
		}
		r.mu.Unlock()

		if expired > 0 {
			metrics.ReassemblyActiveFlows.Sub(float64(expired))
			r.log.WithField("flows", expired).Debug("expired stale fragment flows")
		}
	}
}
