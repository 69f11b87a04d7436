package gateway

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MembershipWriter records grants. Already connected users pick them up on
// their next channel:join or reconnect.
type MembershipWriter interface {
	AddWorkspaceMember(userID domain.UserID, workspaceID string, role domain.WorkspaceRole) error
	AddChannelMember(userID domain.UserID, channelID string) error
}

type membershipRequest struct {
	UserID      domain.UserID        `json:"userId" validate:"required"`
	WorkspaceID string               `json:"workspaceId" validate:"required_without=ChannelID"`
	ChannelID   string               `json:"channelId" validate:"required_without=WorkspaceID"`
	Role        domain.WorkspaceRole `json:"role" validate:"omitempty,oneof=ADMIN MEMBER GUEST"`
}

type notifyRequest struct {
	Event  event.Name      `json:"event" validate:"required"`
	UserID domain.UserID   `json:"userId"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

type notifyResponse struct {
	Delivered int `json:"delivered"`
}

// InternalHandler is the write side used by the persistence layer:
// it relays committed changes and records membership grants.
type InternalHandler struct {
	log           *slog.Logger
	notifications services.INotificationService
	memberships   MembershipWriter
	key           string
	validate      *validator.Validate
}

// NewInternalHandler protects every route with key when it is not empty.
func NewInternalHandler(log *slog.Logger, notifications services.INotificationService,
	memberships MembershipWriter, key string) http.Handler {
	h := &InternalHandler{
		log:           log,
		notifications: notifications,
		memberships:   memberships,
		key:           key,
		validate:      validator.New(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/events", h.events)
	mux.HandleFunc("POST /internal/memberships", h.grant)
	return h.guard(mux)
}

func (h *InternalHandler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Internal-Key")), []byte(h.key)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *InternalHandler) events(w http.ResponseWriter, r *http.Request) {
	var body notifyRequest
	if err := h.decode(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	delivered, err := h.dispatch(r, body)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, notifyResponse{Delivered: delivered})
}

func (h *InternalHandler) dispatch(r *http.Request, body notifyRequest) (int, error) {
	ctx := r.Context()
	switch body.Event {
	case event.MessageNew, event.MessageUpdated:
		var message domain.Message
		if err := unmarshalData(body.Data, &message); err != nil {
			return 0, err
		}
		if body.Event == event.MessageNew {
			return h.notifications.MessageCreated(ctx, message)
		}
		return h.notifications.MessageUpdated(ctx, message)
	case event.MessageDeleted:
		var removed event.MessageRemoved
		if err := unmarshalData(body.Data, &removed); err != nil {
			return 0, err
		}
		return h.notifications.MessageDeleted(ctx, removed.ChannelID, removed.MessageID)
	case event.ChannelCreated:
		var channel domain.Channel
		if err := unmarshalData(body.Data, &channel); err != nil {
			return 0, err
		}
		return h.notifications.ChannelCreated(ctx, channel)
	case event.MemberRole:
		var changed event.RoleChanged
		if err := unmarshalData(body.Data, &changed); err != nil {
			return 0, err
		}
		return h.notifications.RoleChanged(ctx, changed.WorkspaceID, changed.UserID, changed.Role)
	default:
		if body.UserID == "" {
			return 0, fmt.Errorf("%w: %q needs a userId", errors.ErrUnknownEvent, body.Event)
		}
		// Raw data is relayed verbatim.
		return h.notifications.NotifyUser(ctx, body.UserID, body.Event, body.Data)
	}
}

func (h *InternalHandler) grant(w http.ResponseWriter, r *http.Request) {
	var body membershipRequest
	if err := h.decode(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	var err error
	if body.WorkspaceID != "" {
		role := body.Role
		if role == "" {
			role = domain.RoleMember
		}
		err = h.memberships.AddWorkspaceMember(body.UserID, body.WorkspaceID, role)
	}
	if err == nil && body.ChannelID != "" {
		err = h.memberships.AddChannelMember(body.UserID, body.ChannelID)
	}
	if err != nil {
		h.log.Error("Membership grant failed", "user_id", body.UserID, "error", err)
		http.Error(w, "membership grant failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InternalHandler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

func (h *InternalHandler) fail(w http.ResponseWriter, err error) {
	h.log.Warn("Internal request refused", "error", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func unmarshalData(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
