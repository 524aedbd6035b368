package dht

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/dpc/rostra/pkg/log"
	"github.com/dpc/rostra/pkg/rostra"
)

// HeadSource is the narrow slice of storage.SelfHeadWatch the publisher
// needs: the current self head, and a way to block for the next change.
type HeadSource interface {
	Get() (rostra.ShortEventId, bool)
	Next(ctx context.Context) (rostra.ShortEventId, bool, error)
}

// AddressSource supplies the node's currently reachable transport ticket, if
// any (the p2p layer may not have an address yet right after startup).
type AddressSource interface {
	NodeTicket() (string, bool)
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Interval     time.Duration // default 60s
	PublishRetry *backoff.ExponentialBackOff
}

// Publisher is the identity-publication background worker (§4.3): every
// Interval, or whenever the local head changes, it builds a fresh signed
// packet from the node's current address and head and publishes it.
type Publisher struct {
	secret    rostra.RostraIdSecret
	transport Transport
	head      HeadSource
	address   AddressSource
	interval  time.Duration
	logger    zerolog.Logger

	stopCh chan struct{}
}

// NewPublisher constructs a Publisher for secret's identity.
func NewPublisher(secret rostra.RostraIdSecret, transport Transport, head HeadSource, address AddressSource, cfg PublisherConfig) *Publisher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Publisher{
		secret:    secret,
		transport: transport,
		head:      head,
		address:   address,
		interval:  interval,
		logger:    log.WithComponent("dht.publisher"),
		stopCh:    make(chan struct{}),
	}
}

// Run blocks, publishing on every local-head change and every Interval tick,
// until ctx is canceled or Stop is called.
func (p *Publisher) Run(ctx context.Context) {
	changed := make(chan struct{}, 1)
	go func() {
		for {
			_, _, err := p.head.Next(ctx)
			if err != nil {
				return
			}
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.publishOnce(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish to DHT")
		}

		select {
		case <-ticker.C:
		case <-changed:
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals Run to return at its next iteration.
func (p *Publisher) Stop() {
	close(p.stopCh)
}

// ttlSeconds is 3*interval + 1, per §4.3: long enough to outlive the gap
// between ticks (plus the next one's worth of publish latency) with margin.
func (p *Publisher) ttlSeconds() uint32 {
	secs := p.interval.Seconds()*3 + 1
	if secs > float64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(secs)
}

func (p *Publisher) publishOnce(ctx context.Context) error {
	ticket, _ := p.address.NodeTicket()
	var headPtr *rostra.ShortEventId
	if head, ok := p.head.Get(); ok {
		headPtr = &head
	}

	sp, err := BuildSignedPacket(p.secret, ticket, headPtr, p.ttlSeconds(), uint64(time.Now().Unix()))
	if err != nil {
		return err
	}
	raw := sp.Encode()

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		return p.transport.Publish(ctx, p.secret.RostraId(), raw, p.ttlSeconds())
	}, bo)
}
