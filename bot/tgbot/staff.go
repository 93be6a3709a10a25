package tgbot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// StaffAuthorizer treats members of the staff group as reviewers.
type StaffAuthorizer struct {
	client     *Client
	chatID     int64
	adminsOnly bool
}

// NewStaffAuthorizer checks membership of chatID. With adminsOnly only the
// group's creator and administrators qualify.
func NewStaffAuthorizer(client *Client, chatID int64, adminsOnly bool) *StaffAuthorizer {
	return &StaffAuthorizer{client: client, chatID: chatID, adminsOnly: adminsOnly}
}

// IsStaff implements order.Authorizer.
func (s *StaffAuthorizer) IsStaff(ctx context.Context, userID int64) (bool, error) {
	var m *tele.ChatMember
	err := s.client.call(ctx, "staff.check", "getChatMember", func(api API) error {
		var err error
		m, err = api.ChatMemberOf(&tele.Chat{ID: s.chatID}, &tele.User{ID: userID})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("staff check %d: %w", userID, err)
	}
	return s.allowed(m.Role), nil
}

func (s *StaffAuthorizer) allowed(role tele.MemberStatus) bool {
	switch role {
	case tele.Creator, tele.Administrator:
		return true
	case tele.Member, tele.Restricted:
		return !s.adminsOnly
	}
	return false
}
