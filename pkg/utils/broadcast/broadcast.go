// Package broadcast fans out messages of a source channel to any number of
// subscribers.
package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/crewchief/log"
)

type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

// DefaultSendTimeout is the time a slow subscriber may take before the
// message is skipped for it.
const DefaultSendTimeout = 50 * time.Millisecond

type broadcastServer[T any] struct {
	name           string
	sessionKey     string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	sendTimeout    time.Duration
	logger         *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
}

type Option[T any] func(*broadcastServer[T])

// WithSessionKey attaches the session key to the exported metrics.
func WithSessionKey[T any](key string) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sessionKey = key
	}
}

func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    DefaultSendTimeout,
		logger:         log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.logger.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("crewchief.broadcast.%s", b.name))
	attrs := metric.WithAttributes(
		attribute.String("name", b.name),
		attribute.String("session", b.sessionKey),
	)
	for _, d := range []struct {
		name  string
		desc  string
		value *atomic.Int64
	}{
		{"crewchief.broadcast.rcv", "Number of received messages", &b.numRcv},
		{"crewchief.broadcast.snd", "Number of sent messages", &b.numSnd},
		{"crewchief.broadcast.skip", "Number of skipped messages", &b.numSkip},
		{"crewchief.broadcast.listener", "Number of listeners", &b.numListener},
	} {
		value := d.value
		if _, err := meter.Int64ObservableGauge(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(
				func(_ context.Context, o metric.Int64Observer) error {
					o.Observe(value.Load(), attrs)
					return nil
				}),
		); err != nil {
			b.logger.Error("failed to register metric",
				log.String("metric", d.name),
				log.ErrorField(err))
		}
	}
}

//nolint:gocognit // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.logger.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListener.Store(int64(len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				b.logger.Debug("source closed", log.String("name", b.name))
				b.cancel()
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				case <-time.After(b.sendTimeout):
					b.numSkip.Add(1)
				}
			}
		}
	}
}
