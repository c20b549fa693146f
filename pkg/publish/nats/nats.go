// Package nats publishes processed lap ticks to NATS subjects and keeps the
// latest tick per session in a JetStream key-value bucket.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/model"
)

const (
	DefaultSubjectPrefix = "crewchief"
	DefaultBucket        = "crewchief_state"
)

type (
	// subset of *nats.Conn
	msgPublisher interface {
		Publish(subj string, data []byte) error
	}
	// subset of jetstream.KeyValue
	stateStore interface {
		Put(ctx context.Context, key string, value []byte) (uint64, error)
	}
	Publisher struct {
		conn     msgPublisher
		kv       stateStore
		prefix   string
		perCar   bool
		l        *log.Logger
		closeFns []func()
	}
	Option func(*Publisher)
)

func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithPerCar additionally publishes each car analysis on its own subject.
func WithPerCar(arg bool) Option {
	return func(p *Publisher) {
		p.perCar = arg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func withStore(s stateStore) Option {
	return func(p *Publisher) {
		p.kv = s
	}
}

// Connect dials the NATS server at url. If bucket is not empty the
// key-value bucket is created (or updated) for the latest ticks.
//
//nolint:whitespace // editor/linter issue
func Connect(
	ctx context.Context, url, bucket string, opts ...Option,
) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("crewchief"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if bucket != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "latest lap tick per session",
			History:     1,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create kv bucket %s: %w", bucket, err)
		}
		opts = append(opts, withStore(kv))
	}
	ret := NewPublisher(conn, opts...)
	ret.closeFns = append(ret.closeFns, conn.Close)
	return ret, nil
}

func NewPublisher(conn msgPublisher, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		l:      log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *Publisher) TickSubject(sessionKey string) string {
	return fmt.Sprintf("%s.tick.%s", p.prefix, sessionKey)
}

func (p *Publisher) CarSubject(sessionKey, carNum string) string {
	return fmt.Sprintf("%s.car.%s.%s", p.prefix, sessionKey, carNum)
}

// Publish sends the tick as JSON. All targets are attempted, errors are
// joined.
func (p *Publisher) Publish(ctx context.Context, tick *model.TickResult) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	var errs []error
	if err := p.conn.Publish(p.TickSubject(tick.SessionKey), data); err != nil {
		errs = append(errs, err)
	}
	if p.perCar {
		for i := range tick.Cars {
			ca := &tick.Cars[i]
			carData, err := json.Marshal(ca)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			subj := p.CarSubject(tick.SessionKey, ca.Car.CarNumber)
			if err := p.conn.Publish(subj, carData); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if p.kv != nil {
		if _, err := p.kv.Put(ctx, tick.SessionKey, data); err != nil {
			errs = append(errs, fmt.Errorf("store tick: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.l.Debug("published tick",
		log.String("session", tick.SessionKey),
		log.Int("lap", tick.CurrentLap),
		log.Int("bytes", len(data)))
	return nil
}

func (p *Publisher) Close() {
	for _, fn := range p.closeFns {
		fn()
	}
}
