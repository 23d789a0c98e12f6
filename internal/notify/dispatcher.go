package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// PriceDrop describes a re-analysis whose suggested price went down
type PriceDrop struct {
	EntryID   string
	Name      string
	Category  string
	Condition string
	OldPrice  int64
	NewPrice  int64
}

// Channel delivers price-drop notifications to one destination
type Channel interface {
	Name() string
	SendPriceDrop(d PriceDrop) error
}

// Dispatcher fans price-drop notifications out to every channel
type Dispatcher struct {
	mu       sync.RWMutex
	channels []Channel
	log      *logrus.Entry
}

// NewDispatcher creates a dispatcher for the given channels
func NewDispatcher(log *logrus.Entry, channels ...Channel) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		channels: channels,
		log:      log.WithField("component", "notify"),
	}
}

// AddChannel registers another destination
func (d *Dispatcher) AddChannel(c Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, c)
}

// Channels returns the names of the registered channels
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, len(d.channels))
	for i, c := range d.channels {
		names[i] = c.Name()
	}
	return names
}

// NotifyPriceDrop sends drop to all channels concurrently and waits for them.
// Failures are logged and returned joined; one failing channel never stops the others.
func (d *Dispatcher) NotifyPriceDrop(drop PriceDrop) error {
	d.mu.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mu.RUnlock()

	if len(channels) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(channels))

	for _, ch := range channels {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()

			log := d.log.WithFields(logrus.Fields{
				"channel": c.Name(),
				"entry":   drop.EntryID,
			})
			if err := c.SendPriceDrop(drop); err != nil {
				log.WithError(err).Warn("price drop notification failed")
				errChan <- fmt.Errorf("%s: %w", c.Name(), err)
				return
			}
			log.Infof("price drop notification sent (%d -> %d)", drop.OldPrice, drop.NewPrice)
		}(ch)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		d.log.Warnf("notification dispatch completed with %d errors", len(errs))
	}
	return errors.Join(errs...)
}
