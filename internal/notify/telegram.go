// Package notify delivers matched listings to subscribers through the
// Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/metrics"
	"gigalert/discovery-service/internal/model"
)

const (
	messageHeader = "New project found:"
	separator     = "➖➖➖➖➖➖➖➖"
	maxRespBody   = 4096
)

// ErrSendFailed is returned when the channel answered but refused the message.
var ErrSendFailed = errors.New("notification not delivered")

// Dispatcher formats listings and posts them to the Telegram sendMessage endpoint.
type Dispatcher struct {
	apiURL        string // e.g. https://api.telegram.org
	sourceBaseURL string // prefix for source-relative listing links
	timeout       time.Duration
	client        *http.Client
	limiter       *rate.Limiter
	log           logger.Logger
}

// NewDispatcher constructs a Dispatcher. Outbound sends are throttled to
// ratePerSec; each HTTP round-trip is bounded by timeout once its turn comes.
func NewDispatcher(apiURL, sourceBaseURL string, timeout time.Duration, ratePerSec float64, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		apiURL:        strings.TrimRight(apiURL, "/"),
		sourceBaseURL: strings.TrimRight(sourceBaseURL, "/"),
		timeout:       timeout,
		client:        &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(ratePerSec), 1),
		log:           log.With(logger.String("component", "dispatcher")),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NotifyListing formats l and sends it to chatID.
func (d *Dispatcher) NotifyListing(ctx context.Context, token, chatID string, l model.Listing) error {
	return d.Send(ctx, token, chatID, FormatListing(d.sourceBaseURL, l))
}

// Send posts text to chatID using the bot identified by token.
// Timeouts and transport errors are returned, never panicked; nothing is retried.
func (d *Dispatcher) Send(ctx context.Context, token, chatID, text string) error {
	err := d.send(ctx, token, chatID, text)
	if err != nil {
		metrics.RecordNotification("failed")
		return err
	}
	metrics.RecordNotification("sent")
	return nil
}

func (d *Dispatcher) send(ctx context.Context, token, chatID, text string) error {
	// Queueing behind the throttle is not part of the send timeout.
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", d.apiURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		// The endpoint embeds the bot token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("http POST sendMessage: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBody))
	if err != nil {
		return fmt.Errorf("read sendMessage response: %w", err)
	}

	var out sendMessageResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, desc)
	}
	return nil
}

// FormatListing renders the notification text for l. The title is
// HTML-escaped because messages are sent with parse_mode=HTML.
func FormatListing(sourceBaseURL string, l model.Listing) string {
	var b strings.Builder
	b.WriteString(messageHeader)
	b.WriteString("\n\n<b>")
	b.WriteString(html.EscapeString(l.Title))
	b.WriteString("</b>\n\nProject link: ")
	b.WriteString(html.EscapeString(AbsoluteLink(sourceBaseURL, l.Link)))
	b.WriteString("\n\n")
	b.WriteString(separator)
	return b.String()
}

// AbsoluteLink joins a source-relative link onto baseURL. Absolute links are returned as-is.
func AbsoluteLink(baseURL, link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return strings.TrimRight(baseURL, "/") + link
}
