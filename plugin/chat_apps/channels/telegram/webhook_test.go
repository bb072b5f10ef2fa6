package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdateCommand(t *testing.T) {
	payload := []byte(`{
		"update_id": 1001,
		"message": {
			"message_id": 7,
			"from": {"id": 42, "first_name": "Ada", "last_name": "L", "username": "ada"},
			"chat": {"id": -100123, "type": "supergroup"},
			"text": "/create weekly sync",
			"entities": [{"type": "bot_command", "offset": 0, "length": 7}]
		}
	}`)

	update, err := ParseUpdate(payload)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.NotNil(t, update.Command)

	assert.Equal(t, "1001", update.ID())
	assert.Equal(t, "create", update.Command.Name)
	assert.Equal(t, "weekly sync", update.Command.Args)
	assert.Equal(t, "42", update.Command.UserID)
	assert.Equal(t, "Ada L", update.Command.DisplayName)
	assert.Equal(t, "-100123", update.Command.ChatID)
	assert.Equal(t, 7, update.Command.MessageID)
	assert.Nil(t, update.Command.ThreadID)
}

func TestParseUpdateCommandInTopic(t *testing.T) {
	payload := []byte(`{
		"update_id": 1002,
		"message": {
			"message_id": 8,
			"message_thread_id": 55,
			"from": {"id": 42, "first_name": "Ada"},
			"chat": {"id": -100123, "type": "supergroup"},
			"text": "/share",
			"entities": [{"type": "bot_command", "offset": 0, "length": 6}]
		}
	}`)

	update, err := ParseUpdate(payload)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.NotNil(t, update.Command)
	require.NotNil(t, update.Command.ThreadID)
	assert.Equal(t, "55", *update.Command.ThreadID)
}

func TestParseUpdateCallback(t *testing.T) {
	payload := []byte(`{
		"update_id": 1003,
		"callback_query": {
			"id": "cb-1",
			"from": {"id": 43, "username": "grace"},
			"data": "join:6d9515c2-4f17-4a46-9b5c-8a9f67f1a001",
			"message": {
				"message_id": 9,
				"chat": {"id": -100123, "type": "supergroup"}
			}
		}
	}`)

	update, err := ParseUpdate(payload)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.NotNil(t, update.Callback)

	assert.Equal(t, "cb-1", update.Callback.CallbackID)
	assert.Equal(t, "43", update.Callback.UserID)
	assert.Equal(t, "grace", update.Callback.DisplayName)
	assert.Equal(t, "join:6d9515c2-4f17-4a46-9b5c-8a9f67f1a001", update.Callback.Data)
	assert.Equal(t, 9, update.Callback.MessageID)
}

func TestParseUpdateWebApp(t *testing.T) {
	payload := []byte(`{
		"update_id": 1004,
		"message": {
			"message_id": 10,
			"from": {"id": 44, "first_name": "Lin"},
			"chat": {"id": 44, "type": "private"},
			"web_app_data": {"data": "{\"web_app_number\":0}", "button_text": "Create"}
		}
	}`)

	update, err := ParseUpdate(payload)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.NotNil(t, update.WebApp)

	assert.Equal(t, "44", update.WebApp.UserID)
	assert.Equal(t, `{"web_app_number":0}`, update.WebApp.Data)
}

func TestParseUpdatePlainTextIgnored(t *testing.T) {
	payload := []byte(`{
		"update_id": 1005,
		"message": {
			"message_id": 11,
			"from": {"id": 45, "first_name": "Bo"},
			"chat": {"id": 45, "type": "private"},
			"text": "hello"
		}
	}`)

	update, err := ParseUpdate(payload)
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestParseUpdateMalformed(t *testing.T) {
	_, err := ParseUpdate([]byte(`{not json`))
	assert.Error(t, err)
}
