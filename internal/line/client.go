package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// DefaultAPITimeout bounds every call when the caller sets no deadline.
const DefaultAPITimeout = 10 * time.Second

// ClientOptions configures NewClient.
type ClientOptions struct {
	ChannelSecret      string
	ChannelAccessToken string
	// EndpointBase overrides https://api.line.me (tests, proxies).
	EndpointBase string
	HTTPClient   *http.Client
}

// Client looks up profiles and sends replies through the Messaging API.
type Client struct {
	bot *linebot.Client
}

// NewClient builds a Client. The access token is required.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.ChannelAccessToken) == "" {
		return nil, errors.New("line: channel access token is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultAPITimeout}
	}
	copts := []linebot.ClientOption{linebot.WithHTTPClient(hc)}
	if base := strings.TrimSpace(opts.EndpointBase); base != "" {
		copts = append(copts, linebot.WithEndpointBase(base))
	}
	bot, err := linebot.New(opts.ChannelSecret, opts.ChannelAccessToken, copts...)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	return &Client{bot: bot}, nil
}

// DisplayName returns the sender's current display name.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	p, err := c.bot.GetProfile(userID).WithContext(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return p.DisplayName, nil
}

// Reply sends text as a single text message for replyToken.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if _, err := c.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
