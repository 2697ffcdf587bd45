package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/redis"
)

// EventStore is the write side of the door event log
type EventStore interface {
	Append(ctx context.Context, location string, e occupancy.Event) error
	Latest(ctx context.Context, location string) (occupancy.Event, bool, error)
}

// Agent receives raw door readings, stores transitions and announces them
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	store     EventStore
	status    *doorlog.StatusCache
	processor *Processor
	metrics   *metrics
	cfg       *config.Config
	logger    *slog.Logger

	// Serialises the read-compare-append of each reading
	mu sync.Mutex
}

// NewAgent creates a new door agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, store EventStore, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:      mqttClient,
		redis:     redisClient,
		store:     store,
		status:    doorlog.NewStatusCache(redisClient, store, cfg.StatusCacheTTL, logger),
		processor: NewProcessor(logger),
		metrics:   newMetrics(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Start connects to the broker, subscribes to the door topics and blocks
// until ctx is cancelled.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting door agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// The cache is optional; the log is the source of truth
	if err := a.redis.Ping(ctx); err != nil {
		a.logger.Warn("Redis unavailable, status reads will hit Postgres", "error", err)
	}

	subscribed := 0
	for _, topic := range a.cfg.DoorTopics {
		// QoS 1 so transitions survive a broker hiccup
		if err := a.mqtt.Subscribe(topic, 1, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			continue
		}
		subscribed++
	}
	if subscribed == 0 {
		return errors.New("failed to subscribe to any door topic")
	}

	a.logger.Info("Door agent started and ready to receive messages",
		"subscribed_topics", strings.Join(a.cfg.DoorTopics, ", "))

	<-ctx.Done()
	a.logger.Info("Door agent stopping")

	return nil
}

// Stop gracefully stops the door agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping door agent")

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Door agent stopped")
	return nil
}

func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	reading, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		a.metrics.observe("unknown", resultInvalid)
		a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		return
	}

	if _, err := a.Process(context.Background(), reading); err != nil {
		a.logger.Error("Failed to process door reading",
			"location", reading.Location,
			"error", err)
	}
}

// Process stores reading if it changes the door's status and publishes the
// trigger. It reports whether the reading was stored.
func (a *Agent) Process(ctx context.Context, reading *Reading) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.status.Current(ctx, reading.Location)
	if err != nil {
		a.metrics.observe(reading.Location, resultFailed)
		return false, fmt.Errorf("failed to load current status: %w", err)
	}

	// The log must stay in timestamp order
	if current.Known && reading.Event.Timestamp < current.Timestamp {
		a.metrics.observe(reading.Location, resultStale)
		a.logger.Warn("Dropping reading older than current status",
			"location", reading.Location,
			"state", reading.State(),
			"timestamp_ns", reading.Event.Timestamp,
			"current_timestamp_ns", current.Timestamp)
		return false, nil
	}

	if current.Known && current.Closed == reading.Event.Closed {
		a.metrics.observe(reading.Location, resultDuplicate)
		a.logger.Debug("Ignoring reading that does not change status",
			"location", reading.Location,
			"state", reading.State())
		return false, nil
	}

	if err := a.store.Append(ctx, reading.Location, reading.Event); err != nil {
		a.metrics.observe(reading.Location, resultFailed)
		return false, fmt.Errorf("failed to store door event: %w", err)
	}
	a.metrics.observe(reading.Location, resultStored)

	if err := a.status.Update(ctx, reading.Location, reading.Event); err != nil {
		// Without the update the next read falls back to the log
		a.logger.Warn("Failed to update status cache", "location", reading.Location, "error", err)
		if derr := a.redis.Del(ctx, redis.DoorStatusKey(reading.Location)); derr != nil {
			a.logger.Warn("Failed to drop stale status cache", "location", reading.Location, "error", derr)
		}
	}

	if err := a.publishTrigger(reading); err != nil {
		a.logger.Error("Failed to publish trigger message",
			"location", reading.Location,
			"error", err)
	}

	a.logger.Info("Door transition stored",
		"location", reading.Location,
		"state", reading.State(),
		"timestamp_ns", reading.Event.Timestamp)

	return true, nil
}

// publishTrigger publishes automation/sensor/door/{location}
func (a *Agent) publishTrigger(r *Reading) error {
	triggerTopic := mqtt.DoorTriggerTopic(r.Location)

	payload, err := a.processor.BuildTriggerPayload(r)
	if err != nil {
		return fmt.Errorf("failed to build trigger payload: %w", err)
	}

	// Retained so late subscribers see the current status
	if err := a.mqtt.Publish(triggerTopic, 1, true, payload); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}

	a.logger.Debug("Published trigger", "topic", triggerTopic)
	return nil
}
