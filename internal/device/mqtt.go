package device

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// EventVoteAccepted событие успешной отправки голоса
	EventVoteAccepted = "vote_accepted"
	// EventVoteError событие ошибки отправки голоса
	EventVoteError = "vote_error"

	mqttPublishTimeout = 2 * time.Second
)

// FeedbackEvent сообщение, которое киоск публикует вместо мигания светодиодом
type FeedbackEvent struct {
	DeviceID  string    `json:"device_id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTFeedback публикует сигналы киоска в MQTT брокер
type MQTTFeedback struct {
	deviceID string
	topic    string
	publish  func(topic string, payload []byte) error
	logger   *slog.Logger
	client   mqtt.Client
}

// DialMQTT подключается к брокеру и возвращает приемник сигналов
func DialMQTT(brokerAddr, topic, deviceID string, logger *slog.Logger) (*MQTTFeedback, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerAddr).
		SetClientID("kiosk-" + deviceID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerAddr)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerAddr, err)
	}

	f := newMQTTFeedback(topic, deviceID, logger, func(topic string, payload []byte) error {
		t := client.Publish(topic, 0, false, payload)
		if !t.WaitTimeout(mqttPublishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return t.Error()
	})
	f.client = client
	return f, nil
}

func newMQTTFeedback(topic, deviceID string, logger *slog.Logger, publish func(string, []byte) error) *MQTTFeedback {
	return &MQTTFeedback{
		deviceID: deviceID,
		topic:    topic,
		publish:  publish,
		logger:   logger,
	}
}

func (f *MQTTFeedback) Success() { f.send(EventVoteAccepted) }

func (f *MQTTFeedback) Error() { f.send(EventVoteError) }

func (f *MQTTFeedback) send(event string) {
	payload, err := json.Marshal(FeedbackEvent{
		DeviceID:  f.deviceID,
		Event:     event,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		f.logger.Error("marshal feedback event", "error", err)
		return
	}
	if err := f.publish(f.topic, payload); err != nil {
		f.logger.Warn("publish feedback event", "event", event, "topic", f.topic, "error", err)
	}
}

// Close отключается от брокера
func (f *MQTTFeedback) Close() {
	if f.client != nil {
		f.client.Disconnect(250)
	}
}
