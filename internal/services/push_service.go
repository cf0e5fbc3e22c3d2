package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"firebase.google.com/go/v4/messaging"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// fcmMulticastLimit is the FCM cap on tokens per multicast request.
const fcmMulticastLimit = 500

// webpushTTL is how long the push service may hold an undelivered webpush.
const webpushTTL = 24 * 60 * 60

// ErrSubscriptionGone means the push service no longer knows the webpush
// subscription. The caller should disable the stored endpoint.
var ErrSubscriptionGone = errors.New("webpush subscription gone")

// PushPayload carries one rendered notification into the push transports.
type PushPayload struct {
	Title       string
	Body        string
	Link        string
	CollapseKey string
	// Badge is the recipient's unread count. Negative leaves the app badge
	// untouched.
	Badge int
	Data  map[string]string
}

// PushResult is the per-token outcome of a multicast.
type PushResult struct {
	Token        string
	Success      bool
	Unregistered bool
	Err          error
}

// PushService delivers notifications to registered devices. Native tokens go
// through FCM multicast; webpush subscriptions are posted one by one.
type PushService interface {
	SendMulticast(ctx context.Context, tokens []string, payload *PushPayload) ([]PushResult, error)
	SendWebpush(ctx context.Context, subscription []byte, payload *PushPayload) error
}

// PushConfig tunes the push service.
type PushConfig struct {
	RatePerSecond   int
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
}

type fcmPushService struct {
	client  *messaging.Client
	limiter *rate.Limiter
	cfg     PushConfig
	log     zerolog.Logger
}

// NewFCMPushService creates the production push service.
func NewFCMPushService(client *messaging.Client, cfg PushConfig, log zerolog.Logger) PushService {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}
	return &fcmPushService{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		cfg:     cfg,
		log:     log,
	}
}

// SendMulticast pushes the payload to every token, chunked to the FCM batch
// limit. Per-token failures land in the results, not in the error; only a
// canceled context aborts the loop.
func (s *fcmPushService) SendMulticast(ctx context.Context, tokens []string, payload *PushPayload) ([]PushResult, error) {
	results := make([]PushResult, 0, len(tokens))
	for start := 0; start < len(tokens); start += fcmMulticastLimit {
		end := start + fcmMulticastLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return results, err
		}
		batch, err := s.client.SendEachForMulticast(ctx, s.multicastMessage(chunk, payload))
		if err != nil {
			s.log.Error().Err(err).Int("tokens", len(chunk)).Msg("fcm multicast failed")
			for _, token := range chunk {
				results = append(results, PushResult{Token: token, Err: err})
			}
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			continue
		}
		for i, resp := range batch.Responses {
			result := PushResult{Token: chunk[i], Success: resp.Success}
			if resp.Error != nil {
				result.Err = resp.Error
				result.Unregistered = messaging.IsUnregistered(resp.Error)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func (s *fcmPushService) multicastMessage(tokens []string, p *PushPayload) *messaging.MulticastMessage {
	var badge *int
	if p.Badge >= 0 {
		b := p.Badge
		badge = &b
	}
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		Android: &messaging.AndroidConfig{
			Priority:    "high",
			CollapseKey: p.CollapseKey,
			Notification: &messaging.AndroidNotification{
				Sound: "default",
				Tag:   p.CollapseKey,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-push-type":   "alert",
				"apns-priority":    "10",
				"apns-collapse-id": p.CollapseKey,
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Badge:    badge,
					Sound:    "default",
					ThreadID: p.CollapseKey,
				},
			},
		},
	}
}

// webpushBody is what the service worker receives as the push event payload.
type webpushBody struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Link  string            `json:"link"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendWebpush posts the payload to one stored webpush subscription.
func (s *fcmPushService) SendWebpush(ctx context.Context, subscription []byte, payload *PushPayload) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return fmt.Errorf("decode webpush subscription: %w", err)
	}
	body, err := json.Marshal(webpushBody{
		Title: payload.Title,
		Body:  payload.Body,
		Link:  payload.Link,
		Data:  payload.Data,
	})
	if err != nil {
		return fmt.Errorf("encode webpush body: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		Subscriber:      s.cfg.VAPIDSubscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             webpushTTL,
		Urgency:         webpush.UrgencyHigh,
		Topic:           payload.CollapseKey,
	})
	if err != nil {
		return fmt.Errorf("send webpush: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("webpush endpoint returned %d", resp.StatusCode)
	}
	return nil
}
