// Package presence derives online/offline status from per-device session
// heartbeats. A participant is online in a group while at least one of their
// sessions has been seen inside the timeout window.
package presence

import (
    "context"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/utils"
)

// SessionStore holds session rows. Implementations live in repository.
type SessionStore interface {
    Insert(ctx context.Context, session models.Session) error
    // Touch refreshes last_seen; false when the token is unknown.
    Touch(ctx context.Context, token string, now time.Time) (bool, error)
    // Delete removes the session; false when it was already gone.
    Delete(ctx context.Context, token string) (bool, error)
    Get(ctx context.Context, token string) (*models.Session, error)
    LiveByGroup(ctx context.Context, groupID string, cutoff time.Time) ([]models.Session, error)
    CountLive(ctx context.Context, participantID, groupID string, cutoff time.Time) (int, error)
    DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type Tracker struct {
    store   SessionStore
    timeout time.Duration
    now     func() time.Time
}

func NewTracker(store SessionStore, timeout time.Duration) *Tracker {
    return &Tracker{store: store, timeout: timeout, now: time.Now}
}

// Login always creates a new session; multiple devices are detected, not
// blocked. The second return reports whether another live session already
// existed for the same participant and group.
func (t *Tracker) Login(ctx context.Context, participantID, groupID, deviceInfo string) (*models.Session, bool, error) {
    now := t.now().UTC()

    live, err := t.store.CountLive(ctx, participantID, groupID, now.Add(-t.timeout))
    if err != nil {
        return nil, false, err
    }

    token, err := utils.GenerateSessionToken()
    if err != nil {
        return nil, false, err
    }

    session := models.Session{
        ID:            uuid.New().String(),
        GroupID:       groupID,
        ParticipantID: participantID,
        Token:         token,
        DeviceInfo:    deviceInfo,
        LastSeen:      now,
        CreatedAt:     now,
    }
    if err := t.store.Insert(ctx, session); err != nil {
        return nil, false, err
    }
    return &session, live > 0, nil
}

// Heartbeat refreshes last_seen. An unknown token is a benign no-op reported
// as false; the caller must treat the session as dead.
func (t *Tracker) Heartbeat(ctx context.Context, token string) (bool, error) {
    return t.store.Touch(ctx, token, t.now().UTC())
}

// Logout deletes the session. Idempotent.
func (t *Tracker) Logout(ctx context.Context, token string) (bool, error) {
    return t.store.Delete(ctx, token)
}

// Lookup resolves a token to its session, provided it is still live.
func (t *Tracker) Lookup(ctx context.Context, token string) (*models.Session, error) {
    session, err := t.store.Get(ctx, token)
    if err != nil {
        return nil, err
    }
    if session == nil || session.LastSeen.Before(t.now().UTC().Add(-t.timeout)) {
        return nil, nil
    }
    return session, nil
}

// OnlineParticipants aggregates live sessions per participant: one entry per
// participant with a device count and the most recent last_seen, newest first.
func (t *Tracker) OnlineParticipants(ctx context.Context, groupID string) ([]models.OnlineParticipant, error) {
    cutoff := t.now().UTC().Add(-t.timeout)
    sessions, err := t.store.LiveByGroup(ctx, groupID, cutoff)
    if err != nil {
        return nil, err
    }

    byParticipant := make(map[string]*models.OnlineParticipant)
    for _, s := range sessions {
        entry, ok := byParticipant[s.ParticipantID]
        if !ok {
            entry = &models.OnlineParticipant{ParticipantID: s.ParticipantID, LastSeen: s.LastSeen}
            byParticipant[s.ParticipantID] = entry
        }
        entry.DeviceCount++
        if s.LastSeen.After(entry.LastSeen) {
            entry.LastSeen = s.LastSeen
        }
    }

    online := make([]models.OnlineParticipant, 0, len(byParticipant))
    for _, entry := range byParticipant {
        online = append(online, *entry)
    }
    sort.Slice(online, func(i, j int) bool {
        return online[i].LastSeen.After(online[j].LastSeen)
    })
    return online, nil
}

// SweepExpired deletes every session older than the timeout. This is the only
// path that clears sessions after a crash or silent disappearance.
func (t *Tracker) SweepExpired(ctx context.Context) (int, error) {
    return t.store.DeleteExpired(ctx, t.now().UTC().Add(-t.timeout))
}
