// Package haproxy implements a small TCP client for HAProxy's runtime
// socket protocol (spec.md §4.7), used to track and mutate the slot
// table of a load-balancer's `nodes` backend. No third-party client
// speaks this line-oriented stat-socket protocol the way the Dataplane
// API does over HTTP, so this talks raw TCP with the standard library —
// the one deliberate stdlib exception in this codebase's control-plane
// code.
package haproxy

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/composureai/perfectstorm/pkg/logging"
)

const (
	defaultDialTimeout = 5 * time.Second
	slotsFormatVersion = "1"
	backendName        = "nodes"

	// srvOpStateUp and srvAdminStateReady are the numeric encodings
	// HAProxy's `show servers state` reports for a ready, admin-enabled
	// server (spec.md §4.7). These are HAProxy wire-format constants, not
	// ours to choose; a future HAProxy major version could renumber them.
	srvOpStateUp       = 2
	srvAdminStateReady = 4
)

// NoFreeSlotError is returned by AddMember when every slot in the backend
// is already bound to an address.
type NoFreeSlotError struct {
	Backend string
}

func (e *NoFreeSlotError) Error() string {
	return fmt.Sprintf("no free slot available in backend %s", e.Backend)
}

// Slot is one entry of HAProxy's server-template state table (spec.md
// §3, HAProxy slot).
type Slot struct {
	Name       string
	Address    string
	OpState    int
	AdminState int
}

// Active reports whether the slot is bound and ready to receive traffic.
func (s Slot) Active() bool {
	return s.OpState == srvOpStateUp && s.AdminState == srvAdminStateReady
}

// Client speaks the HAProxy runtime API over a single address:port TCP
// endpoint (spec.md §4.6.1: the runtime socket listens on 0.0.0.0:9000).
type Client struct {
	addr        string
	dialTimeout time.Duration

	// free caches slot names with no address bound, read once per
	// reconcile tick and mutated in place as AddMember consumes them, so
	// two adds within one reconcile do not race for the same slot
	// (spec.md §4.7, "Slot cache is read once per reconcile").
	free   []string
	active map[string][]Slot
	loaded bool
}

// New creates a Client targeting the given host:port runtime socket.
func New(addr string) *Client {
	return &Client{addr: addr, dialTimeout: defaultDialTimeout}
}

// exec opens a socket, sends command, and reads lines until EOF,
// stripping blanks and `#`-comments (spec.md §4.7).
func (c *Client) exec(command string) ([]string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing haproxy at %s: %w", c.addr, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return nil, fmt.Errorf("sending command to %s: %w", c.addr, err)
	}

	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", c.addr, err)
	}
	return lines, nil
}

// loadSlots issues `show servers state nodes`, validates the format
// version, and parses each subsequent line into a 19-field positional
// record (spec.md §4.7).
func (c *Client) loadSlots() error {
	lines, err := c.exec(fmt.Sprintf("show servers state %s", backendName))
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("empty response to show servers state %s", backendName)
	}

	version := strings.Fields(strings.TrimPrefix(lines[0], "#"))
	if len(version) == 0 || version[0] != slotsFormatVersion {
		return fmt.Errorf("unsupported show servers state format version %q", lines[0])
	}

	active := make(map[string][]Slot)
	var free []string

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 19 {
			logging.Warn("HAProxyClient", "skipping short state line (%d fields): %q", len(fields), line)
			continue
		}

		name := fields[3]
		addr := fields[4]
		opState, err := strconv.Atoi(fields[5])
		if err != nil {
			logging.Warn("HAProxyClient", "skipping state line with non-numeric srv_op_state: %q", line)
			continue
		}
		adminState, err := strconv.Atoi(fields[6])
		if err != nil {
			logging.Warn("HAProxyClient", "skipping state line with non-numeric srv_admin_state: %q", line)
			continue
		}

		slot := Slot{Name: name, Address: addr, OpState: opState, AdminState: adminState}
		if slot.Active() {
			active[addr] = append(active[addr], slot)
		} else {
			free = append(free, name)
		}
	}

	c.active = active
	c.free = free
	c.loaded = true
	return nil
}

func (c *Client) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	return c.loadSlots()
}

// GetSlots returns the active slot table, bucketed by address
// (spec.md §4.7). It loads the slot cache on first use within a tick;
// call Reset before a new tick to force a refresh.
func (c *Client) GetSlots() (map[string][]Slot, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	return c.active, nil
}

// FreeCount returns the number of unbound slots remaining in the cached
// table, loading it first if necessary.
func (c *Client) FreeCount() (int, error) {
	if err := c.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(c.free), nil
}

// GetMembers returns the set of addresses currently bound, excluding the
// free-slot sentinel (spec.md §4.7).
func (c *Client) GetMembers() ([]string, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(c.active))
	for addr := range c.active {
		members = append(members, addr)
	}
	return members, nil
}

// Reset drops the cached slot table so the next call re-fetches it from
// HAProxy. Call this once per reconcile tick, before the first GetSlots.
func (c *Client) Reset() {
	c.loaded = false
	c.active = nil
	c.free = nil
}

// AddMember pops a free slot and binds addr to it, issuing
// `set server nodes/<slot> addr <addr>` then
// `set server nodes/<slot> state ready` (spec.md §4.7). It fails with
// NoFreeSlotError if every slot is already bound.
func (c *Client) AddMember(addr string) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	if len(c.free) == 0 {
		return &NoFreeSlotError{Backend: backendName}
	}

	slot := c.free[0]
	c.free = c.free[1:]

	if _, err := c.exec(fmt.Sprintf("set server %s/%s addr %s", backendName, slot, addr)); err != nil {
		return fmt.Errorf("setting addr for slot %s: %w", slot, err)
	}
	if _, err := c.exec(fmt.Sprintf("set server %s/%s state ready", backendName, slot)); err != nil {
		return fmt.Errorf("setting state ready for slot %s: %w", slot, err)
	}

	c.active[addr] = append(c.active[addr], Slot{Name: slot, Address: addr, OpState: srvOpStateUp, AdminState: srvAdminStateReady})
	return nil
}

// RemoveMember issues `set server nodes/<slot> state maint` for every
// slot currently bound to addr (spec.md §4.7).
func (c *Client) RemoveMember(addr string) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}

	slots := c.active[addr]
	for _, slot := range slots {
		if _, err := c.exec(fmt.Sprintf("set server %s/%s state maint", backendName, slot.Name)); err != nil {
			return fmt.Errorf("setting state maint for slot %s: %w", slot.Name, err)
		}
		c.free = append(c.free, slot.Name)
	}
	delete(c.active, addr)
	return nil
}
