// Package publishutils constructs run event publishers from provider
// configuration.
package publishutils

import (
	"fmt"

	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/eventstream/kafka"
	"github.com/papercomputeco/reel/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported publish provider: %s", o.ProviderType)
	}
}
