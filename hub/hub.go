package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nestbox "github.com/everydev1618/nestbox"
	"github.com/everydev1618/nestbox/container"
)

const (
	// maxLineBytes bounds one wire request. A connection that sends a
	// longer line is dropped; payloads are opaque but not unbounded.
	maxLineBytes = 1 << 20

	// writeTimeout bounds how long a slow consumer can stall the
	// goroutine delivering to it. On expiry the write fails and the
	// message is dropped for that recipient only.
	writeTimeout = 5 * time.Second

	// stopJoinTimeout bounds how long Stop waits for the acceptor.
	stopJoinTimeout = 5 * time.Second
)

// HelperContext is everything the hub needs to launch helper containers
// from the host.
type HelperContext struct {
	Runtime container.Runtime

	// Image is the container image helpers run in.
	Image string

	// NamePrefix yields container names {NamePrefix}-helper-{N}.
	NamePrefix string

	// HelpersDir is the absolute host path to the helpers/ tree.
	HelpersDir string

	// SocketPath is the host path of the hub socket, mounted into every
	// helper so it can reach the hub.
	SocketPath string

	// BinaryMounts expose the agent binary to helpers, same as the
	// director's.
	BinaryMounts []container.Mount

	// Env holds extra environment variables for helper containers.
	Env map[string]string

	// Entrypoint is the agent command run inside a helper after the
	// init wrapper; DefaultEntrypoint is the fallback from the target.
	Entrypoint        string
	DefaultEntrypoint string
}

// conn is one accepted client connection. Writes are serialized so a
// full line always reaches the socket as one unit.
type conn struct {
	nc      net.Conn
	writeMu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = c.nc.Write(data)
	return err
}

// Hub is the broker coordinating helper containers. It owns the
// listening socket, the connection table, and the tracked-container
// list; construct with New, start with Start, tear down with Stop.
type Hub struct {
	hctx HelperContext
	log  *MessageLog

	listener   net.Listener
	acceptDone chan struct{}
	shutdown   atomic.Bool
	stopped    atomic.Bool

	// Connection table: helper number -> connection. All dispatch
	// decisions and table mutations happen under mu; mu is never held
	// across a blocking write or runtime call.
	mu    sync.Mutex
	conns map[int]*conn

	// Containers launched by this hub, for bulk teardown on Stop.
	containersMu sync.Mutex
	containers   []string
}

// New creates an idle Hub.
func New() *Hub {
	return &Hub{
		conns:      make(map[int]*conn),
		acceptDone: make(chan struct{}),
	}
}

// Start validates and binds the Unix socket, then serves connections
// from a background goroutine until Stop. A stale socket file from a
// previous run is removed first. log may be nil to disable auditing.
func (h *Hub) Start(socketPath string, hctx HelperContext, log *MessageLog) error {
	if err := nestbox.ValidateSocketPath(socketPath); err != nil {
		return err
	}
	h.hctx = hctx
	h.log = log

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("bind hub socket: %w", err)
	}
	h.listener = listener

	go h.acceptLoop()
	slog.Debug("hub listening", "socket", socketPath)
	return nil
}

// Stop shuts the hub down: stops and removes every tracked container,
// closes all connections and the listener, waits briefly for the
// acceptor, and closes the audit log. Cleanup is best-effort and Stop
// is idempotent; it always completes.
func (h *Hub) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	h.shutdown.Store(true)

	if h.hctx.Runtime != nil {
		h.containersMu.Lock()
		names := h.containers
		h.containers = nil
		h.containersMu.Unlock()

		ctx := context.Background()
		for _, name := range names {
			if err := h.hctx.Runtime.Stop(ctx, name); err != nil {
				slog.Debug("stop container failed", "name", name, "error", err)
			}
			if err := h.hctx.Runtime.Remove(ctx, name); err != nil {
				slog.Debug("remove container failed", "name", name, "error", err)
			}
		}
	}

	h.mu.Lock()
	for num, c := range h.conns {
		c.nc.Close()
		delete(h.conns, num)
	}
	h.mu.Unlock()

	if h.listener != nil {
		h.listener.Close()
		select {
		case <-h.acceptDone:
		case <-time.After(stopJoinTimeout):
			slog.Warn("hub acceptor did not exit in time")
		}
	}

	if h.log != nil {
		h.log.Close()
	}
}

// TrackedContainers returns the names of containers the hub is
// responsible for tearing down.
func (h *Hub) TrackedContainers() []string {
	h.containersMu.Lock()
	defer h.containersMu.Unlock()
	out := make([]string, len(h.containers))
	copy(out, h.containers)
	return out
}

// acceptLoop accepts connections until the listener is closed. Closing
// the listener wakes the blocked Accept, so no polling is needed.
func (h *Hub) acceptLoop() {
	defer close(h.acceptDone)
	for {
		nc, err := h.listener.Accept()
		if err != nil {
			if !h.shutdown.Load() {
				slog.Debug("hub accept failed", "error", err)
			}
			return
		}
		go h.readLoop(&conn{nc: nc})
	}
}

// readLoop reads newline-delimited JSON requests from one connection
// and dispatches them until the peer disconnects or shutdown.
func (h *Hub) readLoop(c *conn) {
	helperNum := -1 // not registered

	defer func() {
		if helperNum >= 0 {
			h.unregister(helperNum, c)
			if h.log != nil {
				h.log.LogControl("disconnect", helperNum, nil)
			}
		}
		c.nc.Close()
	}()

	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		req, err := decodeRequest(line)
		if err != nil {
			// Protocol error: report it and keep the connection open.
			c.writeJSON(errorResponse("%s", err))
			continue
		}

		resp, newNum := h.dispatch(c, req, helperNum)
		helperNum = newNum
		if err := c.writeJSON(resp); err != nil {
			return
		}
	}
}

// dispatch routes one decoded request. It returns the response and the
// possibly-updated helper number bound to this connection.
func (h *Hub) dispatch(c *conn, req request, current int) (Response, int) {
	switch r := req.(type) {
	case registerRequest:
		if r.HelperNum < 0 {
			return errorResponse("invalid helper_num"), current
		}
		h.register(r.HelperNum, c)
		if h.log != nil {
			h.log.LogControl("register", r.HelperNum, nil)
		}
		return okResponse(), r.HelperNum

	case spawnRequest:
		return h.handleSpawn(r), current

	case stopRequest:
		return h.handleStop(r), current

	case sendRequest:
		h.routeMessage(senderOf(current), r.To, r.Payload)
		return okResponse(), current

	case broadcastRequest:
		h.broadcastMessage(senderOf(current), r.Payload)
		return okResponse(), current

	default:
		// decodeRequest only produces the variants above.
		return errorResponse("unknown action"), current
	}
}

// senderOf maps an unregistered connection to the director (0).
func senderOf(current int) int {
	if current < 0 {
		return 0
	}
	return current
}

func (h *Hub) register(num int, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[num] = c
}

// unregister removes the table entry for num only while it still points
// at c: a re-registration by a new connection must not be undone by the
// old connection's teardown.
func (h *Hub) unregister(num int, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[num] == c {
		delete(h.conns, num)
	}
}

// routeMessage delivers a message event to one helper. Delivery is best
// effort: an unknown recipient or a failed write drops the message, but
// it is always audited first.
func (h *Hub) routeMessage(sender, recipient int, payload json.RawMessage) {
	if h.log != nil {
		h.log.LogMessage(sender, recipient, payload)
	}

	h.mu.Lock()
	c := h.conns[recipient]
	h.mu.Unlock()
	if c == nil {
		return
	}

	event := MessageEvent{Event: "message", From: sender, Payload: payload}
	if err := c.writeJSON(event); err != nil {
		slog.Debug("deliver failed", "to", recipient, "error", err)
	}
}

// broadcastMessage delivers a message event to every registered helper
// except the sender.
func (h *Hub) broadcastMessage(sender int, payload json.RawMessage) {
	if h.log != nil {
		h.log.LogMessage(sender, "all", payload)
	}

	h.mu.Lock()
	targets := make(map[int]*conn, len(h.conns))
	for num, c := range h.conns {
		targets[num] = c
	}
	h.mu.Unlock()

	event := MessageEvent{Event: "message", From: sender, Payload: payload}
	for num, c := range targets {
		if num == sender {
			continue
		}
		if err := c.writeJSON(event); err != nil {
			slog.Debug("broadcast deliver failed", "to", num, "error", err)
		}
	}
}

// handleSpawn launches a helper container. The container is tracked for
// shutdown teardown only after a successful launch.
func (h *Hub) handleSpawn(r spawnRequest) Response {
	if h.hctx.Runtime == nil {
		return errorResponse("no container runtime")
	}
	if r.HelperNum < 0 {
		return errorResponse("invalid helper_num")
	}

	name := fmt.Sprintf("%s-helper-%d", h.hctx.NamePrefix, r.HelperNum)
	hctx := h.hctx
	if r.HelpersDir != "" {
		hctx.HelpersDir = r.HelpersDir
	}
	mounts := buildHelperMounts(hctx, r.HelperNum)

	// The init wrapper registers with the hub, wires up the broadcast
	// scripts, then execs the agent command.
	agentCmd := h.hctx.Entrypoint
	if agentCmd == "" {
		agentCmd = h.hctx.DefaultEntrypoint
	}
	if agentCmd == "" {
		agentCmd = "/bin/bash"
	}
	args := []string{strconv.Itoa(r.HelperNum), agentCmd}
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}

	spec := container.RunSpec{
		Image:      h.hctx.Image,
		Name:       name,
		Entrypoint: helperInitScript,
		Args:       args,
		Env:        h.hctx.Env,
		Mounts:     mounts,
		Detach:     true,
	}

	if err := h.hctx.Runtime.Run(context.Background(), spec); err != nil {
		if h.log != nil {
			h.log.LogControl("spawn", r.HelperNum, map[string]any{"error": err.Error()})
		}
		return errorResponse("%s", err)
	}

	h.containersMu.Lock()
	h.containers = append(h.containers, name)
	h.containersMu.Unlock()

	if h.log != nil {
		extra := map[string]any{"container_name": name}
		if r.Model != "" {
			extra["model"] = r.Model
		}
		h.log.LogControl("spawn", r.HelperNum, extra)
	}
	slog.Info("helper spawned", "helper", r.HelperNum, "container", name)

	return Response{Status: "ok", ContainerName: name}
}

// handleStop stops and removes a helper container by name. Runtime
// failures are logged but the container is untracked regardless.
func (h *Hub) handleStop(r stopRequest) Response {
	if h.hctx.Runtime == nil {
		return errorResponse("no container runtime")
	}
	if r.ContainerName == "" {
		return errorResponse("missing container_name")
	}

	ctx := context.Background()
	if err := h.hctx.Runtime.Stop(ctx, r.ContainerName); err != nil {
		slog.Debug("stop container failed", "name", r.ContainerName, "error", err)
	}
	if err := h.hctx.Runtime.Remove(ctx, r.ContainerName); err != nil {
		slog.Debug("remove container failed", "name", r.ContainerName, "error", err)
	}

	h.containersMu.Lock()
	for i, name := range h.containers {
		if name == r.ContainerName {
			h.containers = append(h.containers[:i], h.containers[i+1:]...)
			break
		}
	}
	h.containersMu.Unlock()

	if num, ok := ParseHelperNum(r.ContainerName); ok && h.log != nil {
		h.log.LogControl("stop", num, nil)
	}
	return okResponse()
}

// ParseHelperNum extracts the helper number from a container name of
// the form {prefix}-helper-{N}. It walks the name from the right so a
// prefix containing "helper" doesn't confuse it.
func ParseHelperNum(containerName string) (int, bool) {
	parts := strings.Split(containerName, "-")
	for i := len(parts) - 1; i > 0; i-- {
		if parts[i-1] != "helper" {
			continue
		}
		if num, err := strconv.Atoi(parts[i]); err == nil {
			return num, true
		}
	}
	return 0, false
}
