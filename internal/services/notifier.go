package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	log "github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

// Messenger sends one FCM message. *messaging.Client satisfies it.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Notifier pushes trip events to the parents subscribed to a bus topic.
// Sends run in the background so a slow FCM call never holds up tracking.
type Notifier struct {
	client Messenger
	wg     sync.WaitGroup
}

var _ tracking.Observer = (*Notifier)(nil)

// NewNotifier creates a notifier on the app's messaging client
func NewNotifier(ctx context.Context, app *firebase.App) (*Notifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return NewNotifierWithMessenger(client), nil
}

func NewNotifierWithMessenger(client Messenger) *Notifier {
	return &Notifier{client: client}
}

// TripStarted tells parents the bus is on its way
func (n *Notifier) TripStarted(trip models.TripContext) {
	n.sendAsync(topicMessage(trip,
		"Bus is on its way",
		fmt.Sprintf("Bus %s has started trip %s.", trip.BusID, trip.TripNumber),
		map[string]string{"type": "trip_started"},
	))
}

// LocationPublished is not pushed: parents follow the live record instead
func (n *Notifier) LocationPublished(models.TripContext, models.LocationRecord) {}

// PickupResolved announces a confirmed stop
func (n *Notifier) PickupResolved(trip models.TripContext, point models.PickupPoint, confirmed bool, _ models.Position, _ float64) {
	if !confirmed {
		return
	}
	stop := point.Label
	if stop == "" {
		stop = fmt.Sprintf("stop %d", point.SequenceIndex)
	}
	n.sendAsync(topicMessage(trip,
		"Bus arrived",
		fmt.Sprintf("Bus %s has reached %s.", trip.BusID, stop),
		map[string]string{
			"type":           "pickup_confirmed",
			"sequence_index": strconv.Itoa(point.SequenceIndex),
		},
	))
}

// TripEnded tells parents the trip is over
func (n *Notifier) TripEnded(trip models.TripContext) {
	n.sendAsync(topicMessage(trip,
		"Trip finished",
		fmt.Sprintf("Bus %s has finished trip %s.", trip.BusID, trip.TripNumber),
		map[string]string{"type": "trip_ended"},
	))
}

// Wait blocks until every queued notification was attempted
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) sendAsync(message *messaging.Message) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		response, err := n.client.Send(ctx, message)
		if err != nil {
			log.Printf("❌ Error sending FCM message to %s: %v", message.Topic, err)
			return
		}
		log.Printf("✅ FCM notification sent to %s: %s", message.Topic, response)
	}()
}

func topicMessage(trip models.TripContext, title, body string, data map[string]string) *messaging.Message {
	data["school_id"] = trip.SchoolID
	data["bus_id"] = trip.BusID
	data["trip_number"] = trip.TripNumber

	return &messaging.Message{
		Topic: trip.NotificationTopic(),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}
