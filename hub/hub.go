// Package hub is the group-partitioned fan-out primitive: it keeps the set of
// live event-stream connections per group and pushes pre-built events to all
// of them. It knows nothing about why an event fired.
package hub

import (
    "encoding/json"
    "log"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/inkround/inkround-backend/models"
)

const sendBufferSize = 64

// Connection is one open event stream. Events are queued on the send channel
// and drained by a transport writer (SSE loop or websocket write pump). A
// connection whose buffer is full is treated as dead and dropped.
type Connection struct {
    ID            string
    GroupID       string
    ParticipantID string

    send      chan []byte
    closeOnce sync.Once

    // lastHeartbeat is guarded by the hub mutex.
    lastHeartbeat time.Time
}

// Send is the stream of serialized events for the transport writer to drain.
// It is closed when the connection is unsubscribed.
func (c *Connection) Send() <-chan []byte {
    return c.send
}

func (c *Connection) close() {
    c.closeOnce.Do(func() {
        close(c.send)
    })
}

type Stats struct {
    TotalConnections int            `json:"total_connections"`
    GroupConnections map[string]int `json:"group_connections"`
}

type Hub struct {
    mu     sync.Mutex
    groups map[string]map[*Connection]bool

    staleTimeout time.Duration
    now          func() time.Time
}

func New(staleTimeout time.Duration) *Hub {
    return &Hub{
        groups:       make(map[string]map[*Connection]bool),
        staleTimeout: staleTimeout,
        now:          time.Now,
    }
}

// Subscribe registers a new connection for the group and queues a synthetic
// connected event for that connection only. Announcing the newcomer to the
// rest of the group is the caller's business (an online_status broadcast).
func (h *Hub) Subscribe(groupID, participantID string) *Connection {
    conn := &Connection{
        ID:            uuid.New().String(),
        GroupID:       groupID,
        ParticipantID: participantID,
        send:          make(chan []byte, sendBufferSize),
    }

    h.mu.Lock()
    if h.groups[groupID] == nil {
        h.groups[groupID] = make(map[*Connection]bool)
    }
    h.groups[groupID][conn] = true
    conn.lastHeartbeat = h.now()
    h.mu.Unlock()

    connected := models.NewEvent(models.EventConnected, groupID, models.ConnectedData{
        ParticipantID: participantID,
        GroupID:       groupID,
        Message:       "Connected to group events",
    })
    if payload, err := json.Marshal(connected); err == nil {
        conn.send <- payload // fresh buffer, cannot block
    }

    log.Printf("Connection %s added for %s in group %s", conn.ID, participantID, groupID)
    return conn
}

// Unsubscribe removes the connection and closes its send channel. Groups with
// no connections left are dropped entirely.
func (h *Hub) Unsubscribe(conn *Connection) {
    h.mu.Lock()
    h.removeLocked(conn)
    h.mu.Unlock()
}

func (h *Hub) removeLocked(conn *Connection) {
    conns, ok := h.groups[conn.GroupID]
    if ok && conns[conn] {
        delete(conns, conn)
        if len(conns) == 0 {
            delete(h.groups, conn.GroupID)
        }
        log.Printf("Connection %s removed for %s in group %s", conn.ID, conn.ParticipantID, conn.GroupID)
    }
    conn.close()
}

// Publish serializes the event once and queues it on every connection of the
// group. Delivery is best-effort, at most once: a connection that cannot
// accept the event is unregistered on the spot.
func (h *Hub) Publish(groupID string, event models.Event) {
    payload, err := json.Marshal(event)
    if err != nil {
        log.Printf("Error marshalling %s event for group %s: %v", event.Type, groupID, err)
        return
    }

    h.mu.Lock()
    defer h.mu.Unlock()
    h.publishLocked(groupID, payload)
}

func (h *Hub) publishLocked(groupID string, payload []byte) {
    for conn := range h.groups[groupID] {
        select {
        case conn.send <- payload:
            conn.lastHeartbeat = h.now()
        default:
            h.removeLocked(conn)
        }
    }
}

// HeartbeatAll pushes a keep-alive event to every connection in every group.
// Failures prune lazily, exactly as in Publish.
func (h *Hub) HeartbeatAll() {
    h.mu.Lock()
    defer h.mu.Unlock()

    for groupID := range h.groups {
        event := models.NewEvent(models.EventHeartbeat, groupID, map[string]interface{}{
            "timestamp": h.now().UTC(),
        })
        payload, err := json.Marshal(event)
        if err != nil {
            continue
        }
        h.publishLocked(groupID, payload)
    }
}

// Touch refreshes the connection's heartbeat, for transports that receive
// client-side pings (the websocket read pump).
func (h *Hub) Touch(conn *Connection) {
    h.mu.Lock()
    conn.lastHeartbeat = h.now()
    h.mu.Unlock()
}

// SweepStale removes connections that have not seen a heartbeat within the
// timeout. Covers transports that never surface write errors.
func (h *Hub) SweepStale() int {
    cutoff := h.now().Add(-h.staleTimeout)

    h.mu.Lock()
    defer h.mu.Unlock()

    removed := 0
    for _, conns := range h.groups {
        for conn := range conns {
            if conn.lastHeartbeat.Before(cutoff) {
                h.removeLocked(conn)
                removed++
            }
        }
    }
    if removed > 0 {
        log.Printf("Swept %d stale connections", removed)
    }
    return removed
}

func (h *Hub) Stats() Stats {
    h.mu.Lock()
    defer h.mu.Unlock()

    stats := Stats{GroupConnections: make(map[string]int)}
    for groupID, conns := range h.groups {
        stats.GroupConnections[groupID] = len(conns)
        stats.TotalConnections += len(conns)
    }
    return stats
}
