package roomapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"huddle/cmd/internal/room"
	"huddle/cmd/internal/session"
	"huddle/cmd/internal/upload"
)

// Handler wires the protocol operations to HTTP. One POST endpoint per
// operation, JSON bodies, CORS preflight support.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	svc    *room.Service
	tokens session.TokenIssuer
	signer *upload.Signer
}

// NewHandler constructs a room API handler. signer may be nil when upload
// signing is not configured; the sign endpoint then reports a config error.
func NewHandler(log *slog.Logger, cfg Config, svc *room.Service, tokens session.TokenIssuer, signer *upload.Signer) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("roomapi: nil service")
	}
	if tokens == nil {
		return nil, session.ErrConfig
	}
	return &Handler{log: log, cfg: cfg, svc: svc, tokens: tokens, signer: signer}, nil
}

// Register wires room routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/v1/rooms/create", h.post(h.handleCreateRoom))
	mux.HandleFunc("/v1/rooms/join", h.post(h.handleJoinRoom))
	mux.HandleFunc("/v1/rooms/rotate_key", h.post(h.handleRotateKey))
	mux.HandleFunc("/v1/rooms/end", h.post(h.handleEndRoom))
	mux.HandleFunc("/v1/messages/send", h.post(h.handleSendMessage))
	mux.HandleFunc("/v1/messages/list", h.post(h.handleListMessages))
	mux.HandleFunc("/v1/messages/delete", h.post(h.handleDeleteMessage))
	mux.HandleFunc("/v1/uploads/sign", h.post(h.handleSignUpload))
}

// post wraps a handler with CORS headers and method enforcement.
func (h *Handler) post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (h *Handler) setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", h.cfg.CORSOrigin)
	w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type")
}

// ---- handlers ----

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.svc.CreateRoom(r.Context(), room.CreateRoomInput{
		OwnerDeviceID: req.DeviceID,
		DisplayName:   req.DisplayName,
		RoomName:      req.RoomName,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		h.writeServiceError(w, "room.create", err)
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{
		Room:    toRoomResponse(res.Room),
		JoinKey: res.JoinKey,
		Token:   res.Token,
	})
}

func (h *Handler) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.svc.JoinRoom(r.Context(), room.JoinRoomInput{
		DeviceID:    req.DeviceID,
		DisplayName: req.DisplayName,
		RoomID:      req.RoomID,
		Key:         req.Key,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		h.writeServiceError(w, "room.join", err)
		return
	}

	writeJSON(w, http.StatusOK, joinRoomResponse{
		Room:  toRoomResponse(res.Room),
		Token: res.Token,
	})
}

func (h *Handler) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	var req rotateKeyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	key, err := h.svc.RotateKey(r.Context(), room.RotateKeyInput{
		CallerDeviceID: req.DeviceID,
		BearerToken:    bearerToken(r),
		RoomID:         req.RoomID,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		h.writeServiceError(w, "room.rotate_key", err)
		return
	}

	writeJSON(w, http.StatusOK, rotateKeyResponse{JoinKey: key})
}

func (h *Handler) handleEndRoom(w http.ResponseWriter, r *http.Request) {
	var req endRoomRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.svc.EndRoom(r.Context(), room.EndRoomInput{
		CallerDeviceID: req.DeviceID,
		BearerToken:    bearerToken(r),
		RoomID:         req.RoomID,
		Now:            time.Now().UTC(),
	}); err != nil {
		h.writeServiceError(w, "room.end", err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), room.SendMessageInput{
		SenderDeviceID: req.DeviceID,
		BearerToken:    bearerToken(r),
		RoomID:         req.RoomID,
		Kind:           room.MessageKind(req.Kind),
		Body:           req.Body,
		AttachmentID:   req.AttachmentID,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		h.writeServiceError(w, "room.message.send", err)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	var req listMessagesRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msgs, err := h.svc.ListMessages(r.Context(), room.ListMessagesInput{
		CallerDeviceID: req.DeviceID,
		BearerToken:    bearerToken(r),
		RoomID:         req.RoomID,
		Limit:          req.Limit,
	})
	if err != nil {
		h.writeServiceError(w, "room.message.list", err)
		return
	}

	out := listMessagesResponse{Messages: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.svc.DeleteMessage(r.Context(), room.DeleteMessageInput{
		CallerDeviceID: req.DeviceID,
		BearerToken:    bearerToken(r),
		RoomID:         req.RoomID,
		MessageID:      req.MessageID,
	}); err != nil {
		h.writeServiceError(w, "room.message.delete", err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleSignUpload(w http.ResponseWriter, r *http.Request) {
	// Upload credentials are gated on a valid session token; the asserted
	// device identity plays no further role here.
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if _, err := h.tokens.Verify(token, time.Now().UTC()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}
	if h.signer == nil {
		writeError(w, http.StatusInternalServerError, "config_error", "upload signing not configured")
		return
	}

	var req signUploadRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	cred, err := h.signer.Sign(req.Filename, req.Mime, time.Now().UTC())
	if err != nil {
		if errors.Is(err, upload.ErrInvalidPath) {
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid filename")
			return
		}
		h.log.Error("upload.sign.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, signUploadResponse{
		Credential: cred.Token,
		Path:       cred.Path,
		ExpiresAt:  cred.ExpiresAt,
	})
}

// ---- helpers ----

// writeServiceError maps the protocol error taxonomy onto HTTP.
// Kinds share the sentinel's message so equal kinds stay indistinguishable
// on the wire (notably invalid_room_or_key).
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case room.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_input", room.ErrInvalidInput.Error())
	case room.IsInvalidRoomOrKey(err):
		writeError(w, http.StatusNotFound, "invalid_room_or_key", room.ErrInvalidRoomOrKey.Error())
	case room.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", room.ErrNotFound.Error())
	case room.IsExpired(err):
		writeError(w, http.StatusGone, "room_expired", room.ErrExpired.Error())
	case room.IsLocked(err):
		writeError(w, http.StatusGone, "room_locked", room.ErrLocked.Error())
	case room.IsBanned(err):
		writeError(w, http.StatusForbidden, "banned", room.ErrBanned.Error())
	case room.IsUnauthorized(err):
		writeError(w, http.StatusForbidden, "unauthorized", room.ErrUnauthorized.Error())
	case errors.Is(err, session.ErrConfig):
		h.log.Error(op+".config.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "config_error", "server configuration error")
	default:
		h.log.Error(op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
