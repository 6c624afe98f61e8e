// Package telegram sends operator notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/lead"
)

const requestTimeout = 10 * time.Second

type (
	sendMessageRequest struct {
		ChatID                string `json:"chat_id"`
		Text                  string `json:"text"`
		ParseMode             string `json:"parse_mode"`
		DisableWebPagePreview bool   `json:"disable_web_page_preview"`
	}

	apiResponse struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
)

type Notifier struct {
	endpoint string
	chatID   string
	client   *rest.Client
}

var _ lead.Notifier = (*Notifier)(nil) // interface compliance check

// NewNotifier returns nil when the bot token or the chat are not configured.
func NewNotifier(conf *core.Config) *Notifier {
	if conf.Telegram.BotToken == "" || conf.Telegram.ChatID == "" {
		return nil
	}
	return &Notifier{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(conf.Telegram.APIURL, "/"), conf.Telegram.BotToken),
		chatID:   conf.Telegram.ChatID,
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}},
	}
}

// Notify posts an HTML formatted message to the operators chat.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}

	httpReq, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: n.endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return errors.New("telegram: building request failed")
	}
	httpRes, err := n.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		// the endpoint embeds the bot token
		return errors.New("telegram: sending message failed")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return errors.New("telegram: reading response failed")
	}

	var apiRes apiResponse
	_ = json.Unmarshal([]byte(res.Body), &apiRes)
	if res.StatusCode >= http.StatusBadRequest || !apiRes.OK {
		return errors.Errorf("telegram: status %d: %s", res.StatusCode, apiRes.Description)
	}
	return nil
}
