package pubsub

import (
	"time"

	"github.com/rmax-ai/itops-collator/pkg/component"
)

// Keyspace names one of the two independent summary maps.
type Keyspace string

const (
	KeyspaceProcessingPlant   Keyspace = "processing_plant"
	KeyspaceWorkUnitProcessor Keyspace = "work_unit_processor"
)

// Subscription is one data-flow link between a publisher and a subscriber.
type Subscription struct {
	Publisher       component.ID `json:"publisher"`
	Subscriber      component.ID `json:"subscriber"`
	Topic           string       `json:"topic"`
	ServiceName     string       `json:"serviceName,omitempty"`
	Status          string       `json:"status,omitempty"`
	EventsForwarded int64        `json:"eventsForwarded,omitempty"`
}

// ProcessingPlantSubscriptionSummary describes what a plant publishes to and
// consumes from its peers. It is keyed by ComponentID.
type ProcessingPlantSubscriptionSummary struct {
	ComponentID  component.ID   `json:"componentID"`
	Timestamp    time.Time      `json:"timestamp"`
	AsPublisher  []Subscription `json:"asPublisher,omitempty"`
	AsSubscriber []Subscription `json:"asSubscriber,omitempty"`
}

// WorkUnitProcessorSubscriptionSummary lists the topics one WUP subscribes
// to. It is keyed by Subscriber, not by any component id of the reporter.
type WorkUnitProcessorSubscriptionSummary struct {
	Subscriber    component.ID   `json:"subscriber"`
	Timestamp     time.Time      `json:"timestamp"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
}
