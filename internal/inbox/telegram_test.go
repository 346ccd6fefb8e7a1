package inbox

import "testing"

import "github.com/stretchr/testify/assert"

func TestTelegramSelectMessagePrefersMessageOverEditedOverChannelPost(t *testing.T) {
	u := &telegramUpdate{
		Message:       &telegramMessage{MessageId: 1},
		EditedMessage: &telegramMessage{MessageId: 2},
		ChannelPost:   &telegramMessage{MessageId: 3},
	}
	assert.Equal(t, int64(1), u.selectMessage().MessageId)

	u.Message = nil
	assert.Equal(t, int64(2), u.selectMessage().MessageId)

	u.EditedMessage = nil
	assert.Equal(t, int64(3), u.selectMessage().MessageId)

	u.ChannelPost = nil
	assert.Nil(t, u.selectMessage())
}
