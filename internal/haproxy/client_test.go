package haproxy

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSocket is a minimal stand-in for HAProxy's runtime socket: it answers
// `show servers state nodes` with a fixed 4-slot table (2 active, 2 free)
// and records every `set server` command it receives, mutating its table
// accordingly so AddMember/RemoveMember round-trip realistically.
type fakeSocket struct {
	ln   net.Listener
	cmds []string

	slots map[string]*fakeSlot
}

type fakeSlot struct {
	name       string
	addr       string
	opState    int
	adminState int
}

func newFakeSocket(t *testing.T) *fakeSocket {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSocket{
		ln: ln,
		slots: map[string]*fakeSlot{
			"1": {name: "1", addr: "10.0.0.1", opState: srvOpStateUp, adminState: srvAdminStateReady},
			"2": {name: "2", addr: "10.0.0.2", opState: srvOpStateUp, adminState: srvAdminStateReady},
			"3": {name: "3", addr: "-", opState: 0, adminState: 0},
			"4": {name: "4", addr: "-", opState: 0, adminState: 0},
		},
	}
	go s.serve()
	return s
}

func (s *fakeSocket) addr() string { return s.ln.Addr().String() }

func (s *fakeSocket) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.handle(conn)
	}
}

func (s *fakeSocket) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	command := strings.TrimSpace(scanner.Text())
	s.cmds = append(s.cmds, command)

	switch {
	case command == "show servers state nodes":
		fmt.Fprintln(conn, "1")
		for _, name := range []string{"1", "2", "3", "4"} {
			slot := s.slots[name]
			fields := make([]string, 19)
			fields[3] = slot.name
			fields[4] = slot.addr
			fields[5] = fmt.Sprintf("%d", slot.opState)
			fields[6] = fmt.Sprintf("%d", slot.adminState)
			for i, f := range fields {
				if f == "" {
					fields[i] = "0"
				}
			}
			fmt.Fprintln(conn, strings.Join(fields, " "))
		}
	case strings.HasPrefix(command, "set server nodes/") && strings.Contains(command, " addr "):
		var slotName, addr string
		fmt.Sscanf(command, "set server nodes/%s addr %s", &slotName, &addr)
		if slot, ok := s.slots[slotName]; ok {
			slot.addr = addr
		}
	case strings.HasSuffix(command, "state ready"):
		slotName := strings.TrimSuffix(strings.TrimPrefix(command, "set server nodes/"), " state ready")
		if slot, ok := s.slots[slotName]; ok {
			slot.opState = srvOpStateUp
			slot.adminState = srvAdminStateReady
		}
	case strings.HasSuffix(command, "state maint"):
		slotName := strings.TrimSuffix(strings.TrimPrefix(command, "set server nodes/"), " state maint")
		if slot, ok := s.slots[slotName]; ok {
			slot.opState = 0
			slot.adminState = 0
		}
	}
}

func TestClientGetMembersAndSlots(t *testing.T) {
	sock := newFakeSocket(t)
	defer sock.ln.Close()

	c := New(sock.addr())
	members, err := c.GetMembers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, members)

	free, err := c.FreeCount()
	require.NoError(t, err)
	assert.Equal(t, 2, free)
}

func TestClientAddMember(t *testing.T) {
	sock := newFakeSocket(t)
	defer sock.ln.Close()

	c := New(sock.addr())
	require.NoError(t, c.AddMember("10.0.0.9"))

	members, err := c.GetMembers()
	require.NoError(t, err)
	assert.Contains(t, members, "10.0.0.9")
}

func TestClientAddMemberExhaustsFreeSlots(t *testing.T) {
	sock := newFakeSocket(t)
	defer sock.ln.Close()
	sock.slots["3"].addr = "10.0.0.3"
	sock.slots["3"].opState = srvOpStateUp
	sock.slots["3"].adminState = srvAdminStateReady
	sock.slots["4"].addr = "10.0.0.4"
	sock.slots["4"].opState = srvOpStateUp
	sock.slots["4"].adminState = srvAdminStateReady

	c := New(sock.addr())
	err := c.AddMember("10.0.0.11")
	var noFree *NoFreeSlotError
	require.ErrorAs(t, err, &noFree)
}

func TestClientRemoveMemberFreesSlot(t *testing.T) {
	sock := newFakeSocket(t)
	defer sock.ln.Close()

	c := New(sock.addr())
	require.NoError(t, c.RemoveMember("10.0.0.1"))

	members, err := c.GetMembers()
	require.NoError(t, err)
	assert.NotContains(t, members, "10.0.0.1")

	c.Reset()
	require.NoError(t, c.AddMember("10.0.0.20"))
	members, err = c.GetMembers()
	require.NoError(t, err)
	assert.Contains(t, members, "10.0.0.20")
}

func TestSlotActive(t *testing.T) {
	assert.True(t, Slot{OpState: srvOpStateUp, AdminState: srvAdminStateReady}.Active())
	assert.False(t, Slot{OpState: 0, AdminState: srvAdminStateReady}.Active())
	assert.False(t, Slot{OpState: srvOpStateUp, AdminState: 0}.Active())
}
