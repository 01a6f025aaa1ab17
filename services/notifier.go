package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"skate-match-system/engine"
	"skate-match-system/utils"
)

// Notifier delivers a single notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n engine.Notification) error
}

// LogNotifier only logs. Used when no push service is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n engine.Notification) error {
	log.Printf("[NOTIFY] %s -> %s: %s", n.MatchID, n.Recipient, Message(n))
	return nil
}

// Message is the user-facing text of a notification.
func Message(n engine.Notification) string {
	switch n.Type {
	case engine.NotifyYourTurn:
		return "It's your turn in SKATE!"
	case engine.NotifyLetterAssigned:
		return "You got a letter: " + n.Letter
	case engine.NotifyGameWon:
		return "You won your SKATE match!"
	case engine.NotifyGameLost:
		return "You lost your SKATE match"
	}
	return string(n.Type)
}

// PushClient forwards notifications to the push delivery service.
type PushClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPushClient(baseURL, token string) *PushClient {
	return &PushClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

type pushRequest struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	MatchID string `json:"match_id"`
	Type    string `json:"type"`
	Letter  string `json:"letter,omitempty"`
}

func (c *PushClient) Notify(ctx context.Context, n engine.Notification) error {
	payload, err := json.Marshal(pushRequest{
		UserID:  n.Recipient,
		Title:   "SkateHubba",
		Body:    Message(n),
		MatchID: n.MatchID,
		Type:    string(n.Type),
		Letter:  n.Letter,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Dispatcher fans notifications out to a Notifier. Delivery failures are
// logged, never returned: the match change they describe is already
// committed.
type Dispatcher struct {
	notifier Notifier
	limit    int
}

func NewDispatcher(n Notifier) *Dispatcher {
	if n == nil {
		n = LogNotifier{}
	}
	return &Dispatcher{notifier: n, limit: 4}
}

func (d *Dispatcher) Dispatch(ctx context.Context, notes []engine.Notification) {
	if len(notes) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	for _, n := range notes {
		g.Go(func() error {
			if err := d.notifier.Notify(gctx, n); err != nil {
				log.Printf("[NOTIFY] failed to deliver %s to %s for match %s: %v", n.Type, n.Recipient, n.MatchID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
