// Package notify delivers one-off alerts, such as an incoming attack, to
// chat sinks. A guard remembers what went out so restarts stay quiet.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

var ErrBadResponse = errors.New("notification sink returned an error status")

type Notifiable interface {
	ID() string
	Message() string
}

type Sink interface {
	Send(ctx context.Context, n Notifiable) error
}

// Guard records which notifications were delivered. pkg/store implements it.
type Guard interface {
	CheckSent(id string) (bool, error)
	RecordSent(id string) error
}

// --- Discord ---

type DiscordSink struct {
	URL  string
	HTTP *http.Client
}

func NewDiscordSink(url string, client *http.Client) *DiscordSink {
	return &DiscordSink{URL: url, HTTP: client}
}

type discordWebhook struct {
	Content string `json:"content"`
}

func (s *DiscordSink) Send(ctx context.Context, n Notifiable) error {
	body, err := json.Marshal(discordWebhook{Content: n.Message()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %d", ErrBadResponse, resp.StatusCode)
	}
	return nil
}

// --- Guarded Delivery ---

// Notifier sends each notification to every sink once. A notification is
// recorded only when all sinks accepted it, so failures are retried on the
// next call.
type Notifier struct {
	Guard   Guard
	Sinks   []Sink
	Limiter *rate.Limiter // webhooks rate limit bursts
}

func (n *Notifier) Send(ctx context.Context, items []Notifiable) error {
	var errs []error
	for _, item := range items {
		sent, err := n.Guard.CheckSent(item.ID())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if sent {
			continue
		}

		if n.Limiter != nil {
			if err := n.Limiter.Wait(ctx); err != nil {
				errs = append(errs, fmt.Errorf("rate limit: %w", err))
				break
			}
		}

		ok := true
		for _, sink := range n.Sinks {
			if err := sink.Send(ctx, item); err != nil {
				errs = append(errs, fmt.Errorf("send %s: %w", item.ID(), err))
				ok = false
			}
		}
		if ok {
			if err := n.Guard.RecordSent(item.ID()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
