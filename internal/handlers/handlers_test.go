package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/adivish/quickmeet/internal/services"
	"github.com/adivish/quickmeet/internal/videosdk"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo keeps accounts in memory so the HTTP stack runs without
// Postgres.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type testStack struct {
	server       *httptest.Server
	presenceRepo repositories.PresenceRepository
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	userRepo := newFakeUserRepo()
	sessionRepo := repositories.NewRedisSessionRepository(client)
	presenceRepo := repositories.NewRedisPresenceRepository(client)

	rooms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"roomId": "room-123"})
	}))
	t.Cleanup(rooms.Close)

	provider := videosdk.NewClient("api-key", "top-secret", rooms.URL, "https://embed.example/")

	authService := services.NewAuthService(userRepo, sessionRepo, presenceRepo, "test-secret", time.Hour)
	presenceService := services.NewPresenceService(presenceRepo)
	callService := services.NewCallService(presenceRepo, provider, "https://app.example/dashboard")

	handler := New(authService, presenceService, callService, presenceRepo, provider)

	router := chi.NewRouter()
	router.Get("/health", handler.Health)
	router.Post("/auth/signup", handler.Signup)
	router.Post("/auth/login", handler.Login)
	router.Group(func(r chi.Router) {
		r.Use(handler.Authenticate)
		r.Post("/auth/logout", handler.Logout)
		r.Get("/api/video-token", handler.VideoToken)
		r.Get("/dashboard/candidates", handler.Candidates)
		r.Post("/calls/start", handler.StartCall)
		r.Post("/calls/accept", handler.AcceptCall)
		r.Post("/calls/decline", handler.DeclineCall)
		r.Post("/calls/leave", handler.LeaveCall)
		r.Get("/ws/signals", handler.Signals)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testStack{server: server, presenceRepo: presenceRepo}
}

func (s *testStack) signupAndLogin(t *testing.T, email string) (string, uuid.UUID) {
	t.Helper()

	body := map[string]string{"email": email, "password": "correct-horse-battery", "gender": "Other"}
	resp := s.request(t, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var login struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	userID, err := uuid.Parse(login.UserID)
	require.NoError(t, err)
	return login.Token, userID
}

func (s *testStack) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAuthenticate_RejectsMissingToken(t *testing.T) {
	s := newTestStack(t)

	resp := s.request(t, http.MethodGet, "/dashboard/candidates", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCandidates_TwoUsersSeeEachOther(t *testing.T) {
	s := newTestStack(t)

	tokenA, _ := s.signupAndLogin(t, "a@example.com")
	tokenB, userB := s.signupAndLogin(t, "b@example.com")

	// A visits first: nobody else online
	resp := s.request(t, http.MethodGet, "/dashboard/candidates", tokenA, nil)
	var listA struct {
		Candidates []models.Candidate `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listA))
	resp.Body.Close()
	assert.Empty(t, listA.Candidates)

	// B visits: sees A, not themselves
	resp = s.request(t, http.MethodGet, "/dashboard/candidates", tokenB, nil)
	var listB struct {
		Candidates []models.Candidate `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listB))
	resp.Body.Close()
	require.Len(t, listB.Candidates, 1)
	assert.Equal(t, "a", listB.Candidates[0].Username)
	assert.NotEqual(t, userB.String(), listB.Candidates[0].ID)
}

func TestVideoToken(t *testing.T) {
	s := newTestStack(t)
	token, _ := s.signupAndLogin(t, "a@example.com")

	resp := s.request(t, http.MethodGet, "/api/video-token", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload.Token)
}

func TestCallHandshake_OverHTTP(t *testing.T) {
	s := newTestStack(t)

	tokenA, userA := s.signupAndLogin(t, "a@example.com")
	tokenB, _ := s.signupAndLogin(t, "b@example.com")

	// Both visit the dashboard so they are available
	s.request(t, http.MethodGet, "/dashboard/candidates", tokenA, nil).Body.Close()
	s.request(t, http.MethodGet, "/dashboard/candidates", tokenB, nil).Body.Close()

	// B calls A
	resp := s.request(t, http.MethodPost, "/calls/start", tokenB, map[string]string{"target_id": userA.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started services.CallSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	resp.Body.Close()
	assert.Equal(t, "room-123", started.RoomID)
	assert.NotEmpty(t, started.EmbedURL)

	// A's record carries the invitation
	record, err := s.presenceRepo.Get(context.Background(), userA)
	require.NoError(t, err)
	require.NotNil(t, record.IncomingCall)

	// A accepts and joins the same room
	resp = s.request(t, http.MethodPost, "/calls/accept", tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var accepted services.CallSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()
	assert.Equal(t, started.RoomID, accepted.RoomID)

	record, err = s.presenceRepo.Get(context.Background(), userA)
	require.NoError(t, err)
	assert.Nil(t, record.IncomingCall)

	// Accepting again finds nothing pending
	resp = s.request(t, http.MethodPost, "/calls/accept", tokenA, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Leaving hands back a candidate list
	resp = s.request(t, http.MethodPost, "/calls/leave", tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after struct {
		Candidates []models.Candidate `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&after))
	resp.Body.Close()
}

func TestDecline_OverHTTP(t *testing.T) {
	s := newTestStack(t)

	tokenA, userA := s.signupAndLogin(t, "a@example.com")
	_, userB := s.signupAndLogin(t, "b@example.com")

	s.request(t, http.MethodGet, "/dashboard/candidates", tokenA, nil).Body.Close()
	require.NoError(t, s.presenceRepo.SetIncomingCall(context.Background(), userA, &models.IncomingCall{
		CallerID:  userB,
		RoomID:    "room-777",
		Timestamp: time.Now().UnixMilli(),
	}))

	resp := s.request(t, http.MethodPost, "/calls/decline", tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	record, err := s.presenceRepo.Get(context.Background(), userA)
	require.NoError(t, err)
	assert.Nil(t, record.IncomingCall)
}

func TestSignals_InCallSessionParksNewInvitation(t *testing.T) {
	s := newTestStack(t)

	tokenA, userA := s.signupAndLogin(t, "a@example.com")
	tokenB, _ := s.signupAndLogin(t, "b@example.com")
	_, userC := s.signupAndLogin(t, "c@example.com")

	s.request(t, http.MethodGet, "/dashboard/candidates", tokenA, nil).Body.Close()
	s.request(t, http.MethodGet, "/dashboard/candidates", tokenB, nil).Body.Close()

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/signals?token=" + tokenA
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// B calls A; the listener rings
	resp := s.request(t, http.MethodPost, "/calls/start", tokenB, map[string]string{"target_id": userA.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var event struct {
		Type  string               `json:"type"`
		State string               `json:"state"`
		Call  *models.IncomingCall `json:"call"`
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "incoming_call", event.Type)

	// A accepts over HTTP and is in the call from here on
	resp = s.request(t, http.MethodPost, "/calls/accept", tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// C rings A while A is busy: the invitation parks on the record, but
	// nothing rings the listener until A leaves or the invitation goes stale
	require.NoError(t, s.presenceRepo.SetIncomingCall(context.Background(), userA, &models.IncomingCall{
		CallerID:   userC,
		CallerName: "c",
		RoomID:     "room-999",
		Timestamp:  time.Now().UnixMilli(),
	}))

	// Drain until the read times out; the accept may or may not have pushed
	// one last clear, but a new ring must never come through
	for {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		require.NotEqual(t, "incoming_call", event.Type, "a busy session must not be rung")
	}

	record, err := s.presenceRepo.Get(context.Background(), userA)
	require.NoError(t, err)
	require.NotNil(t, record.IncomingCall, "the parked invitation should survive")
	assert.Equal(t, "room-999", record.IncomingCall.RoomID)

	// A listener reconnecting mid-call resumes from the shared state: the
	// snapshot redelivers the parked invitation but still must not ring
	conn.Close()
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	conn2.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	err = conn2.ReadJSON(&event)
	require.Error(t, err, "a reconnecting busy session must not be rung by the snapshot")
}

func TestSignals_PushesInvitationOverWebSocket(t *testing.T) {
	s := newTestStack(t)

	tokenA, userA := s.signupAndLogin(t, "a@example.com")
	_, userB := s.signupAndLogin(t, "b@example.com")

	s.request(t, http.MethodGet, "/dashboard/candidates", tokenA, nil).Body.Close()

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/signals?token=" + tokenA
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// A caller parks an invitation while the listener is attached
	require.NoError(t, s.presenceRepo.SetIncomingCall(context.Background(), userA, &models.IncomingCall{
		CallerID:   userB,
		CallerName: "b",
		RoomID:     "room-555",
		Timestamp:  time.Now().UnixMilli(),
	}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event struct {
		Type  string               `json:"type"`
		State string               `json:"state"`
		Call  *models.IncomingCall `json:"call"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "incoming_call", event.Type)
	assert.Equal(t, "RINGING_IN", event.State)
	require.NotNil(t, event.Call)
	assert.Equal(t, "room-555", event.Call.RoomID)
	assert.Equal(t, userB, event.Call.CallerID)

	// The invitation disappearing rings off
	require.NoError(t, s.presenceRepo.ClearIncomingCall(context.Background(), userA))

	// Reset the reused decode target: the cleared event omits "call", and
	// ReadJSON leaves absent fields untouched.
	event.Call = nil
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "call_cleared", event.Type)
	assert.Equal(t, "IDLE", event.State)
	assert.Nil(t, event.Call)
}
