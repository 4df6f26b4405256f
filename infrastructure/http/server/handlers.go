package server

import (
	"campus-chat/auth"
	"campus-chat/domain"
	"campus-chat/errors"
	"campus-chat/services"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// actingAs returns the authenticated caller. A body field naming someone else is refused.
func actingAs(c *fiber.Ctx, claimed string) (domain.UserID, error) {
	me := auth.UserID(c)
	if claimed != "" && domain.UserID(claimed) != me {
		return "", fmt.Errorf("%w: cannot act as %s", errors.ErrForbidden, claimed)
	}
	return me, nil
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var body sendMessageRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	sender, err := actingAs(c, body.SenderID)
	if err != nil {
		return s.writeError(c, err)
	}
	target, err := services.ParseMessageTarget(body.ConversationID, body.RecipientID, body.GroupID)
	if err != nil {
		return s.writeError(c, err)
	}
	m, err := s.chat.SendMessage(c.UserContext(), sender, target, body.Content)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(m))
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	var cursor *domain.Cursor
	if raw := c.Query("cursor"); raw != "" {
		cursor = lo.ToPtr(domain.Cursor(raw))
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return s.writeError(c, fmt.Errorf("%w: negative limit", errors.ErrInvalidRequest))
	}
	page, err := s.chat.ListMessages(c.UserContext(), auth.UserID(c), domain.ConversationID(c.Params("id")), cursor, limit)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(toMessagePageResponse(page))
}

func (s *Server) markRead(c *fiber.Ctx) error {
	if err := s.chat.MarkRead(c.UserContext(), auth.UserID(c), domain.ConversationID(c.Params("id"))); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) unreadCount(c *fiber.Ctx) error {
	count, err := s.chat.UnreadCount(c.UserContext(), auth.UserID(c), domain.ConversationID(c.Params("id")))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	inbox, err := s.chat.Inbox(c.UserContext(), auth.UserID(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(lo.Map(inbox, func(e services.InboxEntry, _ int) inboxEntryResponse { return toInboxEntryResponse(e) }))
}

func (s *Server) createDirect(c *fiber.Ctx) error {
	var body createDirectRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	conv, err := s.chat.CreateDirect(c.UserContext(), auth.UserID(c), domain.UserID(body.RecipientID))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(toConversationResponse(conv))
}

func (s *Server) createGroup(c *fiber.Ctx) error {
	var body createGroupRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	creator, err := actingAs(c, body.CreatorID)
	if err != nil {
		return s.writeError(c, err)
	}
	members := lo.Map(body.MemberIDs, func(id string, _ int) domain.UserID { return domain.UserID(id) })
	conv, err := s.chat.CreateGroup(c.UserContext(), creator, body.Name, members, body.Description)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toConversationResponse(conv))
}

func (s *Server) addMember(c *fiber.Ctx) error {
	var body memberRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	err := s.chat.AddMember(c.UserContext(), auth.UserID(c), domain.ConversationID(c.Params("id")), domain.UserID(body.UserID))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) removeMember(c *fiber.Ctx) error {
	err := s.chat.RemoveMember(c.UserContext(), auth.UserID(c), domain.ConversationID(c.Params("id")), domain.UserID(c.Params("userId")))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) createStory(c *fiber.Ctx) error {
	var body createStoryRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	author, err := actingAs(c, body.AuthorID)
	if err != nil {
		return s.writeError(c, err)
	}
	kind, err := domain.ParseStoryKind(body.Kind)
	if err != nil {
		return s.writeError(c, err)
	}
	story, err := s.chat.CreateStory(c.UserContext(), author, body.Content, kind)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toStoryResponse(story, story.CreatedAt))
}

func (s *Server) viewStory(c *fiber.Ctx) error {
	var body viewStoryRequest
	if err := decode(c, &body); err != nil {
		return s.writeError(c, err)
	}
	viewer, err := actingAs(c, body.ViewerID)
	if err != nil {
		return s.writeError(c, err)
	}
	if err := s.chat.ViewStory(c.UserContext(), domain.StoryID(c.Params("id")), viewer); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) activeStories(c *fiber.Ctx) error {
	return c.JSON(toStoryResponses(s.chat.ActiveStories(c.UserContext()), s.clock()))
}

func (s *Server) storiesByAuthor(c *fiber.Ctx) error {
	return c.JSON(toStoryResponses(s.chat.StoriesByAuthor(c.UserContext(), domain.UserID(c.Params("id"))), s.clock()))
}

func (s *Server) deleteStory(c *fiber.Ctx) error {
	if err := s.chat.DeleteStory(c.UserContext(), domain.StoryID(c.Params("id")), auth.UserID(c)); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) storyBadge(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"count": s.chat.StoryBadge(c.UserContext(), domain.UserID(c.Params("id")))})
}

func (s *Server) getStats(c *fiber.Ctx) error {
	return c.JSON(s.stats.GetLatest())
}
