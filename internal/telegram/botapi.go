package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const botAPIBase = "https://api.telegram.org"

// BotSession implements Session and Notifier over the HTTP Bot API. It covers
// everything a bot token can do; operations that require a user session
// (joining by invite link, member enumeration) fail with a classified error
// so a userbot adapter can be substituted without touching callers.
type BotSession struct {
	token  string
	client *http.Client
}

// NewBotSession creates a Bot API backed session
func NewBotSession(token string) *BotSession {
	return &BotSession{
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type apiChat struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Username     string `json:"username"`
	MembersCount int    `json:"member_count"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
}

func (s *BotSession) call(ctx context.Context, method string, params map[string]interface{}, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return NewError(KindTechnical, "encode %s request: %v", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", botAPIBase, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewError(KindTechnical, "build %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return NewError(KindTechnical, "%s: %v", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(KindTechnical, "read %s response: %v", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return NewError(KindTechnical, "decode %s response: %v", method, err)
	}

	if !apiResp.OK {
		return classify(&apiResp)
	}

	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return NewError(KindTechnical, "decode %s result: %v", method, err)
		}
	}
	return nil
}

// classify maps a Bot API error response to the fixed taxonomy. The matching
// mirrors the description strings the platform actually emits.
func classify(resp *apiResponse) *Error {
	desc := strings.ToLower(resp.Description)

	if resp.ErrorCode == 429 || strings.Contains(desc, "too many requests") {
		retryAfter := time.Duration(0)
		if resp.Parameters != nil {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &Error{Kind: KindRateLimit, Message: resp.Description, RetryAfter: retryAfter}
	}

	switch {
	case strings.Contains(desc, "peer_flood"), strings.Contains(desc, "flood"):
		return NewError(KindPeerFlood, "%s", resp.Description)
	case strings.Contains(desc, "bot was blocked"), strings.Contains(desc, "blocked"):
		return NewError(KindBlocked, "%s", resp.Description)
	case strings.Contains(desc, "user is deactivated"), strings.Contains(desc, "deleted"):
		return NewError(KindDeleted, "%s", resp.Description)
	case strings.Contains(desc, "user not found"), strings.Contains(desc, "username_invalid"),
		strings.Contains(desc, "username_not_occupied"):
		return NewError(KindInvalidUser, "%s", resp.Description)
	case strings.Contains(desc, "chat not found"):
		return NewError(KindNotFound, "%s", resp.Description)
	case strings.Contains(desc, "invite_hash_expired"), strings.Contains(desc, "invite_hash_invalid"),
		strings.Contains(desc, "invite link"):
		return NewError(KindInvalidInvite, "%s", resp.Description)
	case strings.Contains(desc, "chat_admin_required"), strings.Contains(desc, "administrator rights"):
		return NewError(KindAdminRequired, "%s", resp.Description)
	case strings.Contains(desc, "not a member"), strings.Contains(desc, "user_not_participant"),
		strings.Contains(desc, "kicked"):
		return NewError(KindNotParticipant, "%s", resp.Description)
	case strings.Contains(desc, "channel_private"), strings.Contains(desc, "private"):
		return NewError(KindPrivateChat, "%s", resp.Description)
	case strings.Contains(desc, "can't write"), strings.Contains(desc, "write forbidden"),
		strings.Contains(desc, "privacy"), strings.Contains(desc, "initiate conversation"):
		return NewError(KindPrivacy, "%s", resp.Description)
	case resp.ErrorCode >= 500:
		return NewError(KindTechnical, "%s", resp.Description)
	}
	return NewError(KindUnknown, "%s", resp.Description)
}

// Resolve looks up a chat handle by username or public link path
func (s *BotSession) Resolve(ctx context.Context, identifier string) (*Chat, error) {
	var chat apiChat
	params := map[string]interface{}{"chat_id": "@" + strings.TrimPrefix(identifier, "@")}
	if err := s.call(ctx, "getChat", params, &chat); err != nil {
		return nil, err
	}
	return &Chat{
		ID:           chat.ID,
		Type:         chat.Type,
		Title:        chat.Title,
		Username:     chat.Username,
		MembersCount: chat.MembersCount,
	}, nil
}

// JoinChat is not available to bot tokens; a userbot session is required
func (s *BotSession) JoinChat(ctx context.Context, inviteLink string) (*Chat, error) {
	return nil, NewError(KindJoinFailed, "bot sessions cannot join by invite link %s", inviteLink)
}

// IsParticipant checks the sending account's own membership in a group
func (s *BotSession) IsParticipant(ctx context.Context, chatID int64) (bool, error) {
	var me struct {
		ID int64 `json:"id"`
	}
	if err := s.call(ctx, "getMe", map[string]interface{}{}, &me); err != nil {
		return false, err
	}

	var member struct {
		Status string `json:"status"`
	}
	params := map[string]interface{}{"chat_id": chatID, "user_id": me.ID}
	if err := s.call(ctx, "getChatMember", params, &member); err != nil {
		if IsKind(err, KindNotParticipant) {
			return false, nil
		}
		return false, err
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

// Send delivers one payload, choosing the media method by attachment type
func (s *BotSession) Send(ctx context.Context, chatID int64, payload Payload) (int64, error) {
	method := "sendMessage"
	params := map[string]interface{}{"chat_id": chatID}

	if payload.MediaType != "" && payload.MediaRef != "" {
		switch payload.MediaType {
		case "photo":
			method, params["photo"] = "sendPhoto", payload.MediaRef
		case "video":
			method, params["video"] = "sendVideo", payload.MediaRef
		case "audio":
			method, params["audio"] = "sendAudio", payload.MediaRef
		case "voice":
			method, params["voice"] = "sendVoice", payload.MediaRef
		case "animation":
			method, params["animation"] = "sendAnimation", payload.MediaRef
		case "video_note":
			method, params["video_note"] = "sendVideoNote", payload.MediaRef
		default:
			method, params["document"] = "sendDocument", payload.MediaRef
		}
		if payload.Text != "" && method != "sendVideoNote" {
			params["caption"] = payload.Text
		}
	} else {
		params["text"] = payload.Text
	}

	var msg apiMessage
	if err := s.call(ctx, method, params, &msg); err != nil {
		return 0, err
	}

	// Video notes cannot carry a caption; the text follows as its own message.
	if method == "sendVideoNote" && payload.Text != "" {
		follow := map[string]interface{}{"chat_id": chatID, "text": payload.Text}
		if err := s.call(ctx, "sendMessage", follow, nil); err != nil {
			logrus.Warnf("Failed to deliver video note text to %d: %v", chatID, err)
		}
	}
	return msg.MessageID, nil
}

// Members is not available to bot tokens beyond administrators
func (s *BotSession) Members(ctx context.Context, chatID int64) ([]Member, error) {
	return nil, NewError(KindAdminRequired, "member enumeration of %d requires a user session", chatID)
}

// Ping probes account health with a getMe round trip
func (s *BotSession) Ping(ctx context.Context) error {
	return s.call(ctx, "getMe", map[string]interface{}{}, nil)
}

// Close releases the underlying HTTP resources
func (s *BotSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// DeliverText implements the best-effort reporting sink. Numeric identifiers
// are used as chat ids, anything else as a username.
func (s *BotSession) DeliverText(ctx context.Context, identifier string, text string) error {
	chatID := identifier
	if _, err := fmt.Sscanf(identifier, "%d", new(int64)); err != nil {
		chatID = "@" + strings.TrimPrefix(identifier, "@")
	}
	params := map[string]interface{}{"chat_id": chatID, "text": text}
	return s.call(ctx, "sendMessage", params, nil)
}
