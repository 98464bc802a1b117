package admission

import (
	"net"
	"sort"
	"time"

	"github.com/softap-stack/softap-go/pkg/ap"
)

// RetryDelay is the fixed delay before retrying a failed
// force-disconnect command. One retry cycle per client.
const RetryDelay = 500 * time.Millisecond

// Decision is the outcome of an admission check.
type Decision struct {
	// Allow is true when the client may stay connected.
	Allow bool

	// Reason is the block reason when Allow is false.
	Reason ap.BlockReason
}

// Snapshot is the read-only view of session state an admission check
// runs against. The session builds it per event; the controller never
// holds references into session maps.
type Snapshot struct {
	// ConnectedCount is the number of clients currently connected in
	// the relevant scope (instance or whole session).
	ConnectedCount int

	// MaxClients is the effective client limit (the smaller of the
	// configured and capability limits). 0 means unlimited.
	MaxClients int

	// ClientControl enables allow-list enforcement.
	ClientControl bool

	// AllowList holds admitted MACs when ClientControl is set.
	AllowList []net.HardwareAddr

	// BlockList holds always-rejected MACs.
	BlockList []net.HardwareAddr
}

// Controller performs admission checks and tracks pending
// force-disconnect retries, keyed by client MAC.
type Controller struct {
	pending map[string]struct{}
	retried map[string]struct{}
}

// NewController creates an admission controller.
func NewController() *Controller {
	return &Controller{
		pending: make(map[string]struct{}),
		retried: make(map[string]struct{}),
	}
}

// Decide checks one connecting client against the snapshot.
// Order matters: the block list wins over everything, then the allow
// list, then the client limit.
func (c *Controller) Decide(mac net.HardwareAddr, snap Snapshot) Decision {
	if ap.ContainsMac(snap.BlockList, mac) {
		return Decision{Reason: ap.BlockedByUser}
	}
	if snap.ClientControl && !ap.ContainsMac(snap.AllowList, mac) {
		return Decision{Reason: ap.BlockedByUser}
	}
	if snap.MaxClients > 0 && snap.ConnectedCount >= snap.MaxClients {
		return Decision{Reason: ap.NoMoreStas}
	}
	return Decision{Allow: true}
}

// MarkPendingRetry records a failed force-disconnect for mac. Returns
// false when the client already used its single retry cycle, in which
// case the caller must not schedule another attempt.
func (c *Controller) MarkPendingRetry(mac net.HardwareAddr) bool {
	key := mac.String()
	if _, done := c.retried[key]; done {
		return false
	}
	c.pending[key] = struct{}{}
	c.retried[key] = struct{}{}
	return true
}

// TakePendingRetry removes and returns whether mac had a pending retry.
// Called when the retry timer fires; a false return means the client's
// own disconnect event already cleared the entry and no command must be
// sent.
func (c *Controller) TakePendingRetry(mac net.HardwareAddr) bool {
	key := mac.String()
	if _, ok := c.pending[key]; !ok {
		return false
	}
	delete(c.pending, key)
	return true
}

// ClientDisconnected clears any pending state for mac. Called on the
// client's own disconnect event; wins any race with the retry timer.
func (c *Controller) ClientDisconnected(mac net.HardwareAddr) {
	key := mac.String()
	delete(c.pending, key)
	delete(c.retried, key)
}

// PendingCount returns the number of clients awaiting a retry.
func (c *Controller) PendingCount() int {
	return len(c.pending)
}

// Reset drops all pending/retry state. Called on session stop.
func (c *Controller) Reset() {
	c.pending = make(map[string]struct{})
	c.retried = make(map[string]struct{})
}

// EvictionOrder returns the clients to disconnect when occupancy must
// shrink to limit: most-recently-connected first, ties broken by MAC
// string ascending. Deterministic regardless of map iteration order.
func EvictionOrder(clients []ap.ConnectedClient, limit int) []ap.ConnectedClient {
	if limit < 0 {
		limit = 0
	}
	excess := len(clients) - limit
	if excess <= 0 {
		return nil
	}
	sorted := append([]ap.ConnectedClient(nil), clients...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ConnectedAt.Equal(sorted[j].ConnectedAt) {
			return sorted[i].ConnectedAt.After(sorted[j].ConnectedAt)
		}
		return sorted[i].Mac.String() < sorted[j].Mac.String()
	})
	return sorted[:excess]
}
