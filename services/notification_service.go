package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
)

// INotificationService is what the persistence layer calls after a committed write.
// Each method returns how many connections the event was handed to.
type INotificationService interface {
	MessageCreated(ctx context.Context, message domain.Message) (int, error)
	MessageUpdated(ctx context.Context, message domain.Message) (int, error)
	MessageDeleted(ctx context.Context, channelID, messageID string) (int, error)
	ChannelCreated(ctx context.Context, channel domain.Channel) (int, error)
	RoleChanged(ctx context.Context, workspaceID string, userID domain.UserID, role domain.WorkspaceRole) (int, error)
	NotifyUser(ctx context.Context, userID domain.UserID, name event.Name, payload any) (int, error)
}

type NotificationService struct {
	log       *slog.Logger
	publisher contract.Publisher
}

func NewNotificationService(log *slog.Logger, publisher contract.Publisher) INotificationService {
	return &NotificationService{log: log, publisher: publisher}
}

func (s *NotificationService) MessageCreated(ctx context.Context, message domain.Message) (int, error) {
	if err := checkMessage(message); err != nil {
		return 0, err
	}
	return s.publisher.PublishToChannel(ctx, message.ChannelID, event.MessageNew, message), nil
}

// MessageUpdated relays the full updated message; clients replace it in place by id.
func (s *NotificationService) MessageUpdated(ctx context.Context, message domain.Message) (int, error) {
	if err := checkMessage(message); err != nil {
		return 0, err
	}
	return s.publisher.PublishToChannel(ctx, message.ChannelID, event.MessageUpdated, message), nil
}

func (s *NotificationService) MessageDeleted(ctx context.Context, channelID, messageID string) (int, error) {
	if channelID == "" || messageID == "" {
		return 0, fmt.Errorf("%w: channel and message ids are required", errors.ErrInvalidPayload)
	}
	return s.publisher.PublishToChannel(ctx, channelID, event.MessageDeleted, event.MessageRemoved{
		MessageID: messageID,
		ChannelID: channelID,
	}), nil
}

// ChannelCreated is announced to the whole workspace, private channels included.
// Visibility filtering belongs to the persistence layer.
func (s *NotificationService) ChannelCreated(ctx context.Context, channel domain.Channel) (int, error) {
	if channel.ID == "" || channel.WorkspaceID == "" {
		return 0, fmt.Errorf("%w: channel and workspace ids are required", errors.ErrInvalidPayload)
	}
	return s.publisher.PublishToWorkspace(ctx, channel.WorkspaceID, event.ChannelCreated, channel), nil
}

// RoleChanged is account-scoped: only the affected user's connections hear about it.
func (s *NotificationService) RoleChanged(ctx context.Context, workspaceID string, userID domain.UserID, role domain.WorkspaceRole) (int, error) {
	if workspaceID == "" || userID == "" || role == "" {
		return 0, fmt.Errorf("%w: workspace, user and role are required", errors.ErrInvalidPayload)
	}
	delivered := s.publisher.PublishToUser(ctx, userID, event.MemberRole, event.RoleChanged{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
	})
	s.log.Debug("Role change relayed", "workspace_id", workspaceID, "user_id", userID, "delivered", delivered)
	return delivered, nil
}

func (s *NotificationService) NotifyUser(ctx context.Context, userID domain.UserID, name event.Name, payload any) (int, error) {
	if userID == "" || name == "" {
		return 0, fmt.Errorf("%w: user and event name are required", errors.ErrInvalidPayload)
	}
	return s.publisher.PublishToUser(ctx, userID, name, payload), nil
}

func checkMessage(message domain.Message) error {
	if message.ID == "" || message.ChannelID == "" {
		return fmt.Errorf("%w: message and channel ids are required", errors.ErrInvalidPayload)
	}
	return nil
}
