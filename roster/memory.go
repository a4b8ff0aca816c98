package roster

import (
    "context"
    "sync"
)

// MemoryRoster is a fixed in-memory roster, used in tests and DB-less runs.
type MemoryRoster struct {
    mu     sync.RWMutex
    groups map[string][]Member
}

func NewMemoryRoster() *MemoryRoster {
    return &MemoryRoster{groups: make(map[string][]Member)}
}

func (r *MemoryRoster) AddMember(groupID string, m Member) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.groups[groupID] = append(r.groups[groupID], m)
}

func (r *MemoryRoster) Members(_ context.Context, groupID string) ([]Member, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    members := make([]Member, len(r.groups[groupID]))
    copy(members, r.groups[groupID])
    return members, nil
}

func (r *MemoryRoster) IsMember(_ context.Context, participantID, groupID string) (bool, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, m := range r.groups[groupID] {
        if m.ParticipantID == participantID {
            return true, nil
        }
    }
    return false, nil
}

func (r *MemoryRoster) IsFacilitator(_ context.Context, participantID, groupID string) (bool, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, m := range r.groups[groupID] {
        if m.ParticipantID == participantID {
            return m.Facilitator, nil
        }
    }
    return false, nil
}

func (r *MemoryRoster) DisplayName(_ context.Context, participantID string) (string, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for _, members := range r.groups {
        for _, m := range members {
            if m.ParticipantID == participantID {
                return m.DisplayName, nil
            }
        }
    }
    return "", nil
}
