package handlers

import (
    "bufio"
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/inkround/inkround-backend/game"
    "github.com/inkround/inkround-backend/hub"
    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/presence"
    "github.com/inkround/inkround-backend/repository"
    "github.com/inkround/inkround-backend/roster"
)

func newTestServer(t *testing.T) *httptest.Server {
    t.Helper()

    groupRoster := roster.NewMemoryRoster()
    groupRoster.AddMember("g1", roster.Member{ParticipantID: "alice", DisplayName: "Alice", Facilitator: true})
    groupRoster.AddMember("g1", roster.Member{ParticipantID: "bob", DisplayName: "Bob"})

    tracker := presence.NewTracker(repository.NewMemorySessionStore(), time.Minute)
    eventHub := hub.New(time.Minute)
    coordinator := game.NewCoordinator(repository.NewMemoryGameStore(), groupRoster, eventHub, nil)

    h := &Handler{
        Tracker:     tracker,
        Hub:         eventHub,
        Coordinator: coordinator,
        Roster:      groupRoster,
        JWTSecret:   "test-secret",
    }
    srv := httptest.NewServer(NewRouter(h))
    t.Cleanup(srv.Close)
    return srv
}

func postJSON(t *testing.T, url, sessionToken string, body interface{}) (*http.Response, models.ApiResponse) {
    t.Helper()
    payload, err := json.Marshal(body)
    if err != nil {
        t.Fatalf("marshal failed: %v", err)
    }
    req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
    if err != nil {
        t.Fatalf("building request failed: %v", err)
    }
    req.Header.Set("Content-Type", "application/json")
    if sessionToken != "" {
        req.Header.Set("X-Session-Token", sessionToken)
    }
    return doRequest(t, req)
}

func getJSON(t *testing.T, url, sessionToken string) (*http.Response, models.ApiResponse) {
    t.Helper()
    req, err := http.NewRequest(http.MethodGet, url, nil)
    if err != nil {
        t.Fatalf("building request failed: %v", err)
    }
    if sessionToken != "" {
        req.Header.Set("X-Session-Token", sessionToken)
    }
    return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, models.ApiResponse) {
    t.Helper()
    resp, err := http.DefaultClient.Do(req)
    if err != nil {
        t.Fatalf("request failed: %v", err)
    }
    defer resp.Body.Close()

    var parsed models.ApiResponse
    if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
        t.Fatalf("invalid response body: %v", err)
    }
    return resp, parsed
}

// reparse moves the loosely-typed data field of a response into a concrete
// struct.
func reparse(t *testing.T, data interface{}, out interface{}) {
    t.Helper()
    raw, err := json.Marshal(data)
    if err != nil {
        t.Fatalf("re-marshal failed: %v", err)
    }
    if err := json.Unmarshal(raw, out); err != nil {
        t.Fatalf("re-unmarshal failed: %v", err)
    }
}

type loginResult struct {
    SessionToken  string `json:"session_token"`
    StreamToken   string `json:"stream_token"`
    IsMultiDevice bool   `json:"is_multi_device"`
}

func login(t *testing.T, srv *httptest.Server, participantID string) loginResult {
    t.Helper()
    resp, parsed := postJSON(t, srv.URL+"/api/groups/g1/login", "", map[string]string{
        "participant_id": participantID,
    })
    if resp.StatusCode != http.StatusOK || !parsed.Success {
        t.Fatalf("login failed: status=%d body=%+v", resp.StatusCode, parsed)
    }
    var result loginResult
    reparse(t, parsed.Data, &result)
    if result.SessionToken == "" || result.StreamToken == "" {
        t.Fatalf("login must issue both tokens: %+v", result)
    }
    return result
}

func TestLoginRejectsNonMembers(t *testing.T) {
    srv := newTestServer(t)

    resp, _ := postJSON(t, srv.URL+"/api/groups/g1/login", "", map[string]string{
        "participant_id": "mallory",
    })
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("expected 403 for non-member, got %d", resp.StatusCode)
    }

    resp, _ = postJSON(t, srv.URL+"/api/groups/g1/login", "", map[string]string{})
    if resp.StatusCode != http.StatusBadRequest {
        t.Fatalf("expected 400 for missing participant_id, got %d", resp.StatusCode)
    }
}

func TestSecondLoginIsMultiDevice(t *testing.T) {
    srv := newTestServer(t)

    first := login(t, srv, "alice")
    if first.IsMultiDevice {
        t.Fatalf("first login must not be multi-device")
    }
    second := login(t, srv, "alice")
    if !second.IsMultiDevice {
        t.Fatalf("second login must be flagged multi-device")
    }
}

func TestHeartbeatWithUnknownTokenReportsInactive(t *testing.T) {
    srv := newTestServer(t)

    resp, parsed := postJSON(t, srv.URL+"/api/sessions/heartbeat", "bogus", nil)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("heartbeat must not be an HTTP failure, got %d", resp.StatusCode)
    }
    var result map[string]bool
    reparse(t, parsed.Data, &result)
    if result["active"] {
        t.Fatalf("unknown token must report active=false")
    }
}

func TestSecuredRoutesRequireSession(t *testing.T) {
    srv := newTestServer(t)

    resp, _ := getJSON(t, srv.URL+"/api/groups/g1/online", "")
    if resp.StatusCode != http.StatusUnauthorized {
        t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
    }

    session := login(t, srv, "alice")
    resp, parsed := getJSON(t, srv.URL+"/api/groups/g1/online", session.SessionToken)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected 200 with session, got %d", resp.StatusCode)
    }
    var online []models.OnlineParticipant
    reparse(t, parsed.Data, &online)
    if len(online) != 1 || online[0].ParticipantID != "alice" || online[0].DisplayName != "Alice" {
        t.Fatalf("unexpected online list: %+v", online)
    }

    // A session from g1 cannot read another group's list.
    resp, _ = getJSON(t, srv.URL+"/api/groups/g2/online", session.SessionToken)
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("expected 403 for foreign group, got %d", resp.StatusCode)
    }
}

func TestEventStreamDeliversConnectedFirst(t *testing.T) {
    srv := newTestServer(t)
    session := login(t, srv, "alice")

    resp, err := http.Get(srv.URL + "/api/groups/g1/events?token=" + session.StreamToken)
    if err != nil {
        t.Fatalf("opening stream failed: %v", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected 200 on stream, got %d", resp.StatusCode)
    }
    if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
        t.Fatalf("wrong content type: %q", ct)
    }

    scanner := bufio.NewScanner(resp.Body)
    readEvent := func() models.Event {
        for scanner.Scan() {
            line := scanner.Text()
            if !strings.HasPrefix(line, "data: ") {
                continue
            }
            var event models.Event
            if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
                t.Fatalf("invalid event payload: %v", err)
            }
            return event
        }
        t.Fatalf("stream ended early: %v", scanner.Err())
        return models.Event{}
    }

    if event := readEvent(); event.Type != models.EventConnected {
        t.Fatalf("first event must be connected, got %q", event.Type)
    }
    if event := readEvent(); event.Type != models.EventOnlineStatus {
        t.Fatalf("joining must refresh online status, got %q", event.Type)
    }

    // While the stream is open, the hub reports the connection.
    _, parsed := getJSON(t, srv.URL+"/api/admin/events/stats", session.SessionToken)
    var stats hub.Stats
    reparse(t, parsed.Data, &stats)
    if stats.TotalConnections != 1 || stats.GroupConnections["g1"] != 1 {
        t.Fatalf("unexpected hub stats: %+v", stats)
    }
}

func TestEventStreamRejectsBadTokens(t *testing.T) {
    srv := newTestServer(t)
    session := login(t, srv, "alice")

    resp, err := http.Get(srv.URL + "/api/groups/g1/events?token=garbage")
    if err != nil {
        t.Fatalf("request failed: %v", err)
    }
    resp.Body.Close()
    if resp.StatusCode != http.StatusUnauthorized {
        t.Fatalf("expected 401 for a bad stream token, got %d", resp.StatusCode)
    }

    // A valid token is bound to its group.
    resp, err = http.Get(srv.URL + "/api/groups/g2/events?token=" + session.StreamToken)
    if err != nil {
        t.Fatalf("request failed: %v", err)
    }
    resp.Body.Close()
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("expected 403 for a foreign group, got %d", resp.StatusCode)
    }
}

func TestGameLifecycleOverHTTP(t *testing.T) {
    srv := newTestServer(t)
    alice := login(t, srv, "alice")
    bob := login(t, srv, "bob")

    // Only facilitators create games.
    resp, _ := postJSON(t, srv.URL+"/api/groups/g1/games", bob.SessionToken, nil)
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("expected 403 for non-facilitator, got %d", resp.StatusCode)
    }

    resp, parsed := postJSON(t, srv.URL+"/api/groups/g1/games", alice.SessionToken, nil)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("create game failed: %d", resp.StatusCode)
    }
    var instance models.GameInstance
    reparse(t, parsed.Data, &instance)
    if instance.ID == "" || instance.Status != models.GameSetup {
        t.Fatalf("unexpected instance: %+v", instance)
    }

    resp, _ = postJSON(t, srv.URL+"/api/games/"+instance.ID+"/start", alice.SessionToken, nil)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("start failed: %d", resp.StatusCode)
    }

    // With two players, each immediately holds the other's paper.
    _, parsed = getJSON(t, srv.URL+"/api/games/"+instance.ID+"/state", bob.SessionToken)
    var view models.GameStateView
    reparse(t, parsed.Data, &view)
    if !view.IsMyTurn || view.CurrentPaper == nil {
        t.Fatalf("bob should hold a paper: %+v", view)
    }

    submitURL := srv.URL + "/api/games/" + instance.ID + "/papers/" + view.CurrentPaper.PaperID + "/submit"
    resp, _ = postJSON(t, submitURL, bob.SessionToken, map[string]string{})
    if resp.StatusCode != http.StatusBadRequest {
        t.Fatalf("empty content must be rejected, got %d", resp.StatusCode)
    }
    resp, _ = postJSON(t, submitURL, alice.SessionToken, map[string]string{"content": "not mine"})
    if resp.StatusCode != http.StatusConflict {
        t.Fatalf("wrong participant must get 409, got %d", resp.StatusCode)
    }
    resp, parsed = postJSON(t, submitURL, bob.SessionToken, map[string]string{"content": "a fine opening line"})
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("submit failed: %d %+v", resp.StatusCode, parsed)
    }

    // Alice finishes her turn on bob's paper, completing the round.
    _, parsed = getJSON(t, srv.URL+"/api/games/"+instance.ID+"/state", alice.SessionToken)
    reparse(t, parsed.Data, &view)
    if view.CurrentPaper == nil {
        t.Fatalf("alice should hold bob's paper: %+v", view)
    }
    skipURL := srv.URL + "/api/games/" + instance.ID + "/papers/" + view.CurrentPaper.PaperID + "/skip"
    resp, _ = postJSON(t, skipURL, alice.SessionToken, nil)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("skip failed: %d", resp.StatusCode)
    }

    _, parsed = getJSON(t, srv.URL+"/api/games/"+instance.ID+"/complete", bob.SessionToken)
    var complete map[string]bool
    reparse(t, parsed.Data, &complete)
    if !complete["complete"] {
        t.Fatalf("game should be complete")
    }

    // Transcripts are facilitator-only.
    resp, _ = getJSON(t, srv.URL+"/api/games/"+instance.ID+"/papers", bob.SessionToken)
    if resp.StatusCode != http.StatusForbidden {
        t.Fatalf("expected 403 for non-facilitator transcripts, got %d", resp.StatusCode)
    }
    resp, parsed = getJSON(t, srv.URL+"/api/games/"+instance.ID+"/papers", alice.SessionToken)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("transcripts failed: %d", resp.StatusCode)
    }
    var papers []models.CompletedPaper
    reparse(t, parsed.Data, &papers)
    if len(papers) != 2 {
        t.Fatalf("expected 2 transcripts, got %d", len(papers))
    }
    for _, p := range papers {
        if len(p.Lines) != 2 {
            t.Fatalf("each paper should carry 2 lines, got %+v", p)
        }
    }
}

func TestLogoutAnnouncesDeparture(t *testing.T) {
    srv := newTestServer(t)
    session := login(t, srv, "alice")

    resp, parsed := postJSON(t, srv.URL+"/api/sessions/logout", session.SessionToken, nil)
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("logout failed: %d", resp.StatusCode)
    }
    var result map[string]bool
    reparse(t, parsed.Data, &result)
    if !result["logged_out"] {
        t.Fatalf("first logout must report logged_out=true")
    }

    _, parsed = postJSON(t, srv.URL+"/api/sessions/logout", session.SessionToken, nil)
    reparse(t, parsed.Data, &result)
    if result["logged_out"] {
        t.Fatalf("second logout must be a no-op")
    }

    // The session is gone: secured routes reject it.
    resp, _ = getJSON(t, srv.URL+"/api/groups/g1/online", session.SessionToken)
    if resp.StatusCode != http.StatusUnauthorized {
        t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
    }
}
