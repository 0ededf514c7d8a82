// Package eventstreamutils constructs event publishers from configuration.
package eventstreamutils

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/membench/pkg/eventstream"
	"github.com/papercomputeco/membench/pkg/eventstream/kafka"
	"github.com/papercomputeco/membench/pkg/eventstream/nop"
)

// NewPublisherOpts selects and configures an event publisher. Brokers is
// a comma-separated bootstrap list and only applies to the kafka provider.
type NewPublisherOpts struct {
	Provider string
	Brokers  string
	Topic    string
}

// NewPublisher builds the event publisher named by Provider. An empty
// provider means events are discarded.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.Provider {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(o.Brokers),
			Topic:   o.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.Provider)
	}
}

func splitBrokers(s string) []string {
	var brokers []string

	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}

	return brokers
}
