package events

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/pkg/kafka"
)

// VehicleListingConsumer keeps the local vehicle catalog in step with the listing service.
type VehicleListingConsumer struct {
	consumer *kafka.Consumer
	catalog  vehicleDomain.VehicleRepository
	logger   *zap.Logger
}

// NewVehicleListingConsumer creates a new VehicleListingConsumer.
func NewVehicleListingConsumer(
	brokers []string,
	groupID string,
	catalog vehicleDomain.VehicleRepository,
	logger *zap.Logger,
) *VehicleListingConsumer {
	return &VehicleListingConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicVehicleListings, logger),
		catalog:  catalog,
		logger:   logger,
	}
}

// Start begins consuming listing events. This blocks until the context is cancelled.
func (c *VehicleListingConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *VehicleListingConsumer) Close() error {
	return c.consumer.Close()
}

func (c *VehicleListingConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from listing topic", zap.Error(err))
		return nil
	}

	switch cloudEvent.Type {
	case VehicleListed, VehicleUpdated, VehicleDelisted:
	default:
		c.logger.Debug("ignoring unhandled listing event type", zap.String("type", cloudEvent.Type))
		return nil
	}

	var evt VehicleListingEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse VehicleListingEvent data", zap.Error(err))
		return nil
	}
	status := vehicleDomain.VehicleStatus(evt.Status)
	if cloudEvent.Type == VehicleDelisted {
		status = vehicleDomain.StatusDelisted
	}

	v, err := vehicleDomain.NewVehicle(
		evt.VehicleID, evt.OwnerID,
		evt.Title,
		evt.DailyRate, evt.DepositAmount,
		evt.Currency,
		status,
		evt.Version,
	)
	if err != nil {
		c.logger.Warn("skipping invalid listing",
			zap.String("vehicle_id", evt.VehicleID.String()),
			zap.Error(err),
		)
		return nil
	}

	if err := c.catalog.Upsert(ctx, v); err != nil {
		return fmt.Errorf("failed to sync vehicle %s: %w", evt.VehicleID, err)
	}
	c.logger.Debug("vehicle synced",
		zap.String("vehicle_id", evt.VehicleID.String()),
		zap.Int64("version", evt.Version),
	)
	return nil
}
