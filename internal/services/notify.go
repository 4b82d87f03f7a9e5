package services

import (
	"context"
	"errors"
	"time"

	"maum-baedal-backend/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
)

// Event identifies a user-facing notification.
type Event string

const (
	EventGateOpened         Event = "gate_opened"
	EventPartnerAnswered    Event = "partner_answered"
	EventCompanionConnected Event = "companion_connected"
	EventDailyQuestion      Event = "daily_question"
	EventAnswerReminder     Event = "answer_reminder"
)

// Notifier delivers events to users. Delivery is best-effort and must
// never fail the operation that triggered it.
type Notifier interface {
	Dispatch(userID string, event Event, vars map[string]string)
}

type eventText struct {
	title string
	body  string
}

var eventTexts = map[Event]eventText{
	EventGateOpened:         {"마음이 도착했어요", "서로의 답변이 공개되었어요. 지금 확인해보세요."},
	EventPartnerAnswered:    {"상대방이 답변했어요", "오늘의 질문에 답하고 마음을 확인해보세요."},
	EventCompanionConnected: {"동행이 연결되었어요", "이제 매일 질문을 함께 나눌 수 있어요."},
	EventDailyQuestion:      {"오늘의 질문이 도착했어요", "새로운 질문이 배달되었어요."},
	EventAnswerReminder:     {"아직 답변하지 않았어요", "오늘의 질문이 곧 마감돼요."},
}

// Dispatcher fans events out over WebSocket and APNs. Either channel may
// be absent; a nil APNs client disables push delivery.
type Dispatcher struct {
	store store.Store
	hub   *WSHub
	apns  *apns2.Client
	topic string
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(st store.Store, hub *WSHub, apnsClient *apns2.Client, topic string) *Dispatcher {
	return &Dispatcher{
		store: st,
		hub:   hub,
		apns:  apnsClient,
		topic: topic,
	}
}

// Dispatch delivers the event asynchronously. Errors are logged, never
// returned.
func (d *Dispatcher) Dispatch(userID string, event Event, vars map[string]string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("event", string(event)).Msg("Notification dispatch panicked")
			}
		}()
		d.deliver(userID, event, vars)
	}()
}

func (d *Dispatcher) deliver(userID string, event Event, vars map[string]string) {
	text, ok := eventTexts[event]
	if !ok {
		log.Warn().Str("event", string(event)).Msg("Unknown notification event")
		return
	}

	if d.hub != nil {
		msg := WSMessage{
			Type:      string(event),
			Timestamp: time.Now().UnixMilli(),
			Message:   text.body,
			Data:      vars,
		}
		if err := d.hub.SendToUser(userID, msg); err != nil {
			log.Debug().Str("user_id", userID).Str("event", string(event)).Msg("User not connected for realtime event")
		}
	}

	if d.apns == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := d.store.Users().GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for push")
		}
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	p := payload.NewPayload().
		AlertTitle(text.title).
		AlertBody(text.body).
		Sound("default").
		Custom("event", string(event))
	for k, v := range vars {
		p.Custom(k, v)
	}

	notification := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       d.topic,
		Payload:     p,
	}

	res, err := d.apns.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("event", string(event)).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", userID).
			Str("event", string(event)).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Push notification rejected")
		return
	}

	log.Debug().Str("user_id", userID).Str("event", string(event)).Msg("Push notification sent")
}
