package server

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"campus-chat/services"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

var validate = validator.New()

// Blank content and names are left to the core, which reports them with
// their own codes. The tags only bound sizes and shapes.

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"max=64"`
	RecipientID    string `json:"recipientId" validate:"max=128"`
	GroupID        string `json:"groupId" validate:"max=64"`
	SenderID       string `json:"senderId" validate:"max=128"`
	Content        string `json:"content" validate:"max=4096"`
}

type createGroupRequest struct {
	CreatorID   string   `json:"creatorId" validate:"max=128"`
	Name        string   `json:"name" validate:"max=100"`
	MemberIDs   []string `json:"memberIds" validate:"max=256,dive,max=128"`
	Description string   `json:"description" validate:"max=500"`
}

type memberRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type createDirectRequest struct {
	RecipientID string `json:"recipientId" validate:"required,max=128"`
}

type createStoryRequest struct {
	AuthorID string `json:"authorId" validate:"max=128"`
	Content  string `json:"content" validate:"max=4096"`
	Kind     string `json:"kind"`
}

type viewStoryRequest struct {
	ViewerID string `json:"viewerId" validate:"max=128"`
}

func decode(c *fiber.Ctx, v any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(v); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}

type messageResponse struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	Content        string   `json:"content"`
	CreatedAt      string   `json:"createdAt"`
	Sequence       uint64   `json:"sequence"`
	ReadBy         []string `json:"readBy"`
}

type messagePageResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *string           `json:"nextCursor"`
}

type conversationResponse struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"`
	Name           string   `json:"name,omitempty"`
	Description    string   `json:"description,omitempty"`
	Participants   []string `json:"participants"`
	CreatedBy      string   `json:"createdBy"`
	CreatedAt      string   `json:"createdAt"`
	LastActivityAt string   `json:"lastActivityAt"`
}

type inboxEntryResponse struct {
	conversationResponse
	LastMessage *messageResponse `json:"lastMessage"`
	UnreadCount int              `json:"unreadCount"`
}

type storyResponse struct {
	ID        string   `json:"id"`
	AuthorID  string   `json:"authorId"`
	Content   string   `json:"content"`
	Kind      string   `json:"kind"`
	CreatedAt string   `json:"createdAt"`
	ExpiresAt string   `json:"expiresAt"`
	ViewerIDs []string `json:"viewerIds"`
	Status    string   `json:"status"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func userIDs(s domain.UserSet) []string {
	return lo.Map(s.Sorted(), func(id domain.UserID, _ int) string { return string(id) })
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Content:        m.Content,
		CreatedAt:      formatTime(m.CreatedAt),
		Sequence:       m.Sequence,
		ReadBy:         userIDs(m.ReadBy),
	}
}

func toMessagePageResponse(page services.MessagePage) messagePageResponse {
	resp := messagePageResponse{
		Messages: lo.Map(page.Messages, func(m domain.Message, _ int) messageResponse { return toMessageResponse(m) }),
	}
	if page.NextCursor != nil {
		resp.NextCursor = lo.ToPtr(string(*page.NextCursor))
	}
	return resp
}

func toConversationResponse(c domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:             string(c.ID),
		Kind:           string(c.Kind),
		Name:           c.Name,
		Description:    c.Description,
		Participants:   userIDs(c.Participants),
		CreatedBy:      string(c.CreatedBy),
		CreatedAt:      formatTime(c.CreatedAt),
		LastActivityAt: formatTime(c.LastActivityAt),
	}
}

func toInboxEntryResponse(e services.InboxEntry) inboxEntryResponse {
	resp := inboxEntryResponse{
		conversationResponse: toConversationResponse(e.Conversation),
		UnreadCount:          e.Unread,
	}
	if e.LastMessage != nil {
		resp.LastMessage = lo.ToPtr(toMessageResponse(*e.LastMessage))
	}
	return resp
}

func toStoryResponse(s domain.Story, now time.Time) storyResponse {
	return storyResponse{
		ID:        string(s.ID),
		AuthorID:  string(s.AuthorID),
		Content:   s.Content,
		Kind:      string(s.Kind),
		CreatedAt: formatTime(s.CreatedAt),
		ExpiresAt: formatTime(s.ExpiresAt),
		ViewerIDs: userIDs(s.ViewerIDs),
		Status:    string(s.StatusAt(now)),
	}
}

func toStoryResponses(stories []domain.Story, now time.Time) []storyResponse {
	return lo.Map(stories, func(s domain.Story, _ int) storyResponse { return toStoryResponse(s, now) })
}
