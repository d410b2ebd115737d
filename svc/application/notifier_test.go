package application_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/email"
	"github.com/stageroute/castflow/pkg/notifications"
	"github.com/stageroute/castflow/svc/application"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func TestChannelNotifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	user := application.User{ID: uuid.New(), FirstName: "Cleo", Email: "cleo@example.com"}
	dir := application.NewMemoryDirectory()
	dir.AddUser(user)

	storage := notifications.NewMemoryStorage()
	renderer, err := email.NewRenderer()
	require.NoError(t, err)
	sender := new(mockSender)
	sender.On("SendEmail", ctx, mock.MatchedBy(func(p email.SendEmailParams) bool {
		return p.SendTo == user.Email && p.Tag == "shortlisted" && p.Subject == "Shortlisted"
	})).Return(nil).Once()

	n := application.NewChannelNotifier(notifications.NewManager(storage, nil), sender, renderer, dir)

	require.NoError(t, n.SendPush(ctx, user.ID, "pushed", map[string]string{"job_id": "j"}))
	require.NoError(t, n.SendInApp(ctx, user.ID, "in app", nil))
	require.NoError(t, n.SendEmail(ctx, user.ID, application.EmailMessage{
		Template: "shortlisted",
		Subject:  "Shortlisted",
		Data:     map[string]string{"first_name": "Cleo", "job_title": "Night Shift"},
	}))
	sender.AssertExpectations(t)

	stored, err := storage.List(ctx, user.ID, notifications.ListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, notifications.ChannelInApp, stored[0].Channel)
	assert.Equal(t, notifications.ChannelPush, stored[1].Channel)
	assert.Equal(t, "j", stored[1].Data["job_id"])

	err = n.SendEmail(ctx, uuid.New(), application.EmailMessage{Template: "shortlisted", Subject: "x"})
	require.Error(t, err, "unknown recipient")

	err = n.SendEmail(ctx, user.ID, application.EmailMessage{Template: "nope", Subject: "x"})
	require.ErrorIs(t, err, email.ErrUnknownTemplate)
}
