package websocket

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

type sentMessage struct {
	Type string
	Data interface{}
}

type recorder struct {
	ch   chan sentMessage
	fail bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan sentMessage, 64)}
}

func (r *recorder) send(msgType string, data interface{}) bool {
	if r.fail {
		return false
	}
	r.ch <- sentMessage{Type: msgType, Data: data}
	return true
}

func (r *recorder) next(t *testing.T) sentMessage {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message sent")
		return sentMessage{}
	}
}

func incoming(t *testing.T, msgType string, data interface{}) IncomingMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return IncomingMessage{Type: msgType, Data: raw}
}

func TestDeviceRequestPermission(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	result := make(chan bool, 1)
	go func() {
		granted, err := d.RequestPermission(context.Background())
		assert.NoError(t, err)
		result <- granted
	}()

	msg := rec.next(t)
	require.Equal(t, TypePermissionRequest, msg.Type)
	req := msg.Data.(requestPayload)

	require.NoError(t, d.HandleMessage(incoming(t, TypePermissionStatus, permissionStatus{RequestID: req.RequestID, Granted: true})))
	assert.True(t, <-result)
}

func TestDevicePermissionWithoutRequestID(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	result := make(chan bool, 1)
	go func() {
		granted, _ := d.RequestPermission(context.Background())
		result <- granted
	}()
	rec.next(t)

	require.NoError(t, d.HandleMessage(incoming(t, TypePermissionStatus, permissionStatus{Granted: false})))
	assert.False(t, <-result)
}

func TestDeviceRequestTimeout(t *testing.T) {
	d := NewDevice("driver-3", newRecorder().send)
	d.requestTimeout = 20 * time.Millisecond

	_, err := d.RequestPermission(context.Background())
	assert.ErrorIs(t, err, ErrRequestTimeout)

	_, err = d.CurrentPosition(context.Background(), tracking.AccuracyHigh)
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestDeviceSendFailure(t *testing.T) {
	rec := newRecorder()
	rec.fail = true
	d := NewDevice("driver-3", rec.send)

	_, err := d.RequestPermission(context.Background())
	assert.ErrorIs(t, err, ErrSendFailed)
	_, err = d.WatchPosition(tracking.WatchOptions{}, func(models.Position) {})
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, d.WatchStats())
}

func TestDeviceCurrentPosition(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	type result struct {
		pos models.Position
		err error
	}
	results := make(chan result, 2)
	ask := func() {
		pos, err := d.CurrentPosition(context.Background(), tracking.AccuracyHigh)
		results <- result{pos, err}
	}

	go ask()
	msg := rec.next(t)
	req := msg.Data.(requestPayload)
	assert.Equal(t, "high", req.Accuracy)

	pos := models.Position{Latitude: 37.347, Longitude: -121.93, Timestamp: 1700000000000}
	require.NoError(t, d.HandleMessage(incoming(t, TypePositionResponse, positionResponse{RequestID: req.RequestID, Position: &pos})))
	got := <-results
	require.NoError(t, got.err)
	assert.Equal(t, pos, got.pos)

	go ask()
	req = rec.next(t).Data.(requestPayload)
	require.NoError(t, d.HandleMessage(incoming(t, TypePositionResponse, positionResponse{RequestID: req.RequestID, Error: "location unavailable"})))
	got = <-results
	assert.ErrorContains(t, got.err, "location unavailable")
}

func TestDeviceWatchPosition(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	var delivered []models.Position
	sub, err := d.WatchPosition(tracking.WatchOptions{
		Accuracy:    tracking.AccuracyHigh,
		MinDistance: 1,
		MinInterval: time.Second,
	}, func(pos models.Position) {
		delivered = append(delivered, pos)
	})
	require.NoError(t, err)

	msg := rec.next(t)
	require.Equal(t, TypeWatchPosition, msg.Type)
	watch := msg.Data.(watchPayload)
	assert.Equal(t, int64(1000), watch.MinIntervalMs)
	assert.Equal(t, 1.0, watch.MinDistanceM)

	base := int64(1700000000000)
	updates := []models.Position{
		{Latitude: 37.3470, Longitude: -121.93, Timestamp: base},
		{Latitude: 37.3480, Longitude: -121.93, Timestamp: base + 200},  // too soon
		{Latitude: 37.3480, Longitude: -121.93, Timestamp: base + 1000}, // moved
		{Latitude: 37.3480, Longitude: -121.93, Timestamp: base + 2000}, // stationary
	}
	for _, u := range updates {
		require.NoError(t, d.HandleMessage(incoming(t, TypeLocationUpdate, u)))
	}
	require.Len(t, delivered, 2)
	assert.Equal(t, base+1000, delivered[1].Timestamp)

	stats := d.WatchStats()
	require.Len(t, stats, 1)
	for _, s := range stats {
		assert.Equal(t, FilterStats{Received: 4, SkippedByInterval: 1, SkippedByDelta: 1, Delivered: 2}, s)
	}

	require.NoError(t, sub.Cancel())
	assert.Equal(t, TypeStopWatch, rec.next(t).Type)

	require.NoError(t, d.HandleMessage(incoming(t, TypeLocationUpdate, models.Position{Latitude: 1, Timestamp: base + 60000})))
	assert.Len(t, delivered, 2, "cancelled watch gets nothing")
	require.NoError(t, sub.Cancel(), "second cancel is a no-op")
}

func TestDeviceOrientation(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	require.NoError(t, d.SetSampleInterval(100*time.Millisecond))
	msg := rec.next(t)
	assert.Equal(t, TypeOrientationInterval, msg.Type)
	assert.Equal(t, int64(100), msg.Data.(intervalPayload).IntervalMs)

	var samples []models.OrientationSample
	listener, err := d.Subscribe(func(s models.OrientationSample) {
		samples = append(samples, s)
	})
	require.NoError(t, err)

	require.NoError(t, d.HandleMessage(incoming(t, TypeOrientationUpdate, map[string]float64{"x": 1, "y": 0.5, "z": 0})))
	require.Len(t, samples, 1)
	assert.True(t, samples[0].HasAxes())

	require.NoError(t, listener.Remove())
	assert.Equal(t, TypeStopOrientation, rec.next(t).Type)
	require.NoError(t, d.HandleMessage(incoming(t, TypeOrientationUpdate, map[string]float64{"x": 1, "y": 1})))
	assert.Len(t, samples, 1)
}

func TestDeviceClose(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	sub, err := d.WatchPosition(tracking.WatchOptions{MinInterval: time.Second}, func(models.Position) {})
	require.NoError(t, err)
	listener, err := d.Subscribe(func(models.OrientationSample) {})
	require.NoError(t, err)
	rec.next(t)

	pending := make(chan error, 1)
	go func() {
		_, err := d.RequestPermission(context.Background())
		pending <- err
	}()
	rec.next(t)

	d.Close()
	assert.ErrorIs(t, <-pending, ErrDeviceClosed)

	// Teardown after a disconnect succeeds quietly
	assert.NoError(t, sub.Cancel())
	assert.NoError(t, listener.Remove())
	assert.Empty(t, rec.ch)

	_, err = d.WatchPosition(tracking.WatchOptions{}, func(models.Position) {})
	assert.ErrorIs(t, err, ErrDeviceClosed)
	assert.ErrorIs(t, d.SetSampleInterval(time.Second), ErrDeviceClosed)

	d.ShowError("ignored")
	assert.Empty(t, rec.ch)
}

func TestDevicePrompts(t *testing.T) {
	rec := newRecorder()
	d := NewDevice("driver-3", rec.send)

	d.RequestConfirmation(tracking.ConfirmationRequest{
		Point:     models.PickupPoint{SequenceIndex: 2, Label: "Elm St"},
		DistanceM: 12,
		Message:   "Have you arrived at Elm St?",
	})
	msg := rec.next(t)
	assert.Equal(t, TypeConfirmArrivalPrompt, msg.Type)
	assert.Equal(t, 2, msg.Data.(promptPayload).SequenceIndex)

	d.UpdateBearing(tracking.BearingUpdate{From: 10, To: 100, Duration: 400 * time.Millisecond})
	msg = rec.next(t)
	assert.Equal(t, bearingPayload{From: 10, To: 100, DurationMs: 400}, msg.Data)

	d.ShowRoute(tracking.Route{DurationSeconds: 60})
	assert.Equal(t, TypeRouteUpdate, rec.next(t).Type)

	d.ShowError("boom")
	assert.Equal(t, errorPayload{Message: "boom"}, rec.next(t).Data)
}

func TestDeviceRejectsBadMessages(t *testing.T) {
	d := NewDevice("driver-3", newRecorder().send)

	assert.ErrorIs(t, d.HandleMessage(IncomingMessage{Type: "teleport"}), ErrUnknownMessage)
	assert.Error(t, d.HandleMessage(IncomingMessage{Type: TypeLocationUpdate, Data: json.RawMessage(`"nope"`)}))
}
