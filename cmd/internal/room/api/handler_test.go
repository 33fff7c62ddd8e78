package roomapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"huddle/cmd/internal/room"
	"huddle/cmd/internal/session"
	"huddle/cmd/internal/upload"
)

type testEnv struct {
	mux    *http.ServeMux
	store  *room.InMemoryStore
	tokens session.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.Secret = "test-secret-not-for-production"
	tokens, err := session.NewHS256Issuer(cfg)
	if err != nil {
		t.Fatalf("NewHS256Issuer: %v", err)
	}

	store := room.NewInMemoryStore()
	svc, err := room.NewService(nil, store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	signer, err := upload.NewSigner(upload.Config{Secret: cfg.Secret})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	h, err := NewHandler(nil, Config{MaxBodyBytes: 1 << 20, CORSOrigin: "*"}, svc, tokens, signer)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{mux: mux, store: store, tokens: tokens}
}

func (e *testEnv) post(t *testing.T, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) createRoom(t *testing.T) createRoomResponse {
	t.Helper()

	rec := e.post(t, "/v1/rooms/create", "", map[string]any{
		"device_id":    "device-owner",
		"display_name": "Owner",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create room: status=%d body=%s", rec.Code, rec.Body)
	}
	return decodeBody[createRoomResponse](t, rec)
}

func TestCreateRoomEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.createRoom(t)

	if res.Room.ID == "" || res.JoinKey == "" || res.Token == "" {
		t.Fatalf("incomplete response: %+v", res)
	}
	if res.Room.OwnerDeviceID != "device-owner" {
		t.Fatalf("owner=%q", res.Room.OwnerDeviceID)
	}

	claims, err := env.tokens.Verify(res.Token, time.Now().UTC())
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.DeviceID != "device-owner" {
		t.Fatalf("token subject=%q", claims.DeviceID)
	}
}

func TestCreateRoomEndpoint_MissingFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.post(t, "/v1/rooms/create", "", map[string]any{"device_id": "d"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if body := decodeBody[errorBody](t, rec); body.Error.Code != "invalid_input" {
		t.Fatalf("code=%q", body.Error.Code)
	}
}

func TestJoinRoomEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	rec := env.post(t, "/v1/rooms/join", "", map[string]any{
		"device_id":    "device-b",
		"display_name": "Joiner",
		"room_id":      created.Room.ID,
		"key":          created.JoinKey,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	res := decodeBody[joinRoomResponse](t, rec)
	if res.Token == "" || res.Room.ID != created.Room.ID {
		t.Fatalf("incomplete response: %+v", res)
	}
}

func TestJoinRoomEndpoint_WrongKeyAndMissingRoomLookAlike(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	wrongKey := env.post(t, "/v1/rooms/join", "", map[string]any{
		"device_id":    "device-b",
		"display_name": "Joiner",
		"room_id":      created.Room.ID,
		"key":          "ffffffff",
	})
	missingRoom := env.post(t, "/v1/rooms/join", "", map[string]any{
		"device_id":    "device-b",
		"display_name": "Joiner",
		"room_id":      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"key":          created.JoinKey,
	})

	if wrongKey.Code != http.StatusNotFound || missingRoom.Code != http.StatusNotFound {
		t.Fatalf("statuses=%d,%d want both 404", wrongKey.Code, missingRoom.Code)
	}
	a := decodeBody[errorBody](t, wrongKey)
	b := decodeBody[errorBody](t, missingRoom)
	if a.Error.Code != b.Error.Code || a.Error.Message != b.Error.Message {
		t.Fatalf("responses differ: %+v vs %+v", a, b)
	}
}

func TestEndRoomEndpoint_GatesJoins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	rec := env.post(t, "/v1/rooms/end", created.Token, map[string]any{
		"device_id": "device-owner",
		"room_id":   created.Room.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("end: status=%d body=%s", rec.Code, rec.Body)
	}

	rec = env.post(t, "/v1/rooms/join", "", map[string]any{
		"device_id":    "device-b",
		"display_name": "Joiner",
		"room_id":      created.Room.ID,
		"key":          created.JoinKey,
	})
	if rec.Code != http.StatusGone {
		t.Fatalf("join after end: status=%d body=%s", rec.Code, rec.Body)
	}
	if body := decodeBody[errorBody](t, rec); body.Error.Code != "room_locked" {
		t.Fatalf("code=%q", body.Error.Code)
	}
}

func TestRotateKeyEndpoint_OwnerOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	rec := env.post(t, "/v1/rooms/rotate_key", "", map[string]any{
		"device_id": "device-intruder",
		"room_id":   created.Room.ID,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}

	rec = env.post(t, "/v1/rooms/rotate_key", created.Token, map[string]any{
		"device_id": "device-owner",
		"room_id":   created.Room.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	res := decodeBody[rotateKeyResponse](t, rec)
	if res.JoinKey == "" || res.JoinKey == created.JoinKey {
		t.Fatalf("key not rotated: %q", res.JoinKey)
	}
}

func TestMessageEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	send := env.post(t, "/v1/messages/send", created.Token, map[string]any{
		"device_id": "device-owner",
		"room_id":   created.Room.ID,
		"kind":      "text",
		"body":      "hello",
	})
	if send.Code != http.StatusOK {
		t.Fatalf("send: status=%d body=%s", send.Code, send.Body)
	}
	msg := decodeBody[messageResponse](t, send)
	if msg.SenderNameSnapshot != "Owner" {
		t.Fatalf("snapshot=%q", msg.SenderNameSnapshot)
	}

	list := env.post(t, "/v1/messages/list", created.Token, map[string]any{
		"device_id": "device-owner",
		"room_id":   created.Room.ID,
	})
	if list.Code != http.StatusOK {
		t.Fatalf("list: status=%d body=%s", list.Code, list.Body)
	}
	history := decodeBody[listMessagesResponse](t, list)
	if len(history.Messages) != 1 || history.Messages[0].ID != msg.ID {
		t.Fatalf("history=%+v", history)
	}

	del := env.post(t, "/v1/messages/delete", created.Token, map[string]any{
		"device_id":  "device-someone-else",
		"room_id":    created.Room.ID,
		"message_id": msg.ID,
	})
	if del.Code != http.StatusForbidden {
		t.Fatalf("delete by non-sender: status=%d body=%s", del.Code, del.Body)
	}

	del = env.post(t, "/v1/messages/delete", created.Token, map[string]any{
		"device_id":  "device-owner",
		"room_id":    created.Room.ID,
		"message_id": msg.ID,
	})
	if del.Code != http.StatusOK {
		t.Fatalf("delete by sender: status=%d body=%s", del.Code, del.Body)
	}
}

func TestSignUploadEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.createRoom(t)

	rec := env.post(t, "/v1/uploads/sign", "", map[string]any{
		"filename": "cat.png", "mime": "image/png",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d body=%s", rec.Code, rec.Body)
	}

	rec = env.post(t, "/v1/uploads/sign", "not-a-jwt", map[string]any{
		"filename": "cat.png", "mime": "image/png",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status=%d body=%s", rec.Code, rec.Body)
	}

	rec = env.post(t, "/v1/uploads/sign", created.Token, map[string]any{
		"filename": "cat.png", "mime": "image/png",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	res := decodeBody[signUploadResponse](t, rec)
	if res.Credential == "" || res.Path == "" {
		t.Fatalf("incomplete response: %+v", res)
	}
}

func TestMethodAndPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/rooms/create", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight: status=%d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/rooms/create", nil)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status=%d", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/rooms/create", io.NopCloser(bytes.NewReader([]byte("{not json"))))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
}
