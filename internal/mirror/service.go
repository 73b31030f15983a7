// Package mirror republishes live telemetry and link state to an MQTT broker.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/link"
	"pulse/internal/render"
	"pulse/internal/telemetry"
)

const tokenTimeout = 5 * time.Second

// Source is where snapshots come from. telemetry.Store implements it.
type Source interface {
	Snapshot() telemetry.Snapshot
}

// Service polls the store every Interval and publishes snapshots whose
// version moved, plus every link transition handed to OnTransition.
type Service struct {
	Topic    string
	Interval time.Duration
	QOS      byte
	Client   Client
	Source   Source
	Logger   zerolog.Logger

	events chan link.Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(topic string, interval time.Duration, qos byte, client Client, src Source, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		Topic:    topic,
		Interval: interval,
		QOS:      qos,
		Client:   client,
		Source:   src,
		Logger:   logger,
		events:   make(chan link.Status, 32),
	}
}

// Start connects to the broker and launches the publish loop.
func (s *Service) Start() error {
	if s.ctx != nil {
		return errors.New("mirror service is already running")
	}

	tok := s.Client.Connect()
	if !tok.WaitTimeout(tokenTimeout) {
		s.Client.Disconnect(0)
		return errors.New("mirror: timed out connecting to broker")
	}
	if err := tok.Error(); err != nil {
		s.Client.Disconnect(0)
		return fmt.Errorf("mirror: connect: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()

	s.Logger.Info().Str("topic", s.Topic).Msg("mirror started")
	return nil
}

// Stop ends the loop and disconnects.
func (s *Service) Stop() error {
	if s.ctx == nil {
		return errors.New("mirror service is not running")
	}
	s.cancel()
	s.wg.Wait()
	s.Client.Disconnect(250)

	s.ctx = nil
	s.cancel = nil
	s.Logger.Info().Msg("mirror stopped")
	return nil
}

// OnTransition queues a link status for publishing. It never blocks; when
// the queue is full the event is dropped.
func (s *Service) OnTransition(st link.Status) {
	select {
	case s.events <- st:
	default:
		s.Logger.Warn().Str("state", st.State.String()).Msg("mirror queue full, dropping link event")
	}
}

func (s *Service) run() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var (
		last      uint64
		published bool
	)
	for {
		select {
		case <-s.ctx.Done():
			return
		case st := <-s.events:
			s.publish(s.Topic+"/link", true, linkEvent(st))
		case <-ticker.C:
			snap := s.Source.Snapshot()
			if published && snap.Version == last {
				continue
			}
			last, published = snap.Version, true
			s.publish(s.Topic+"/telemetry", false, telemetryMessage(snap))
		}
	}
}

func (s *Service) publish(topic string, retained bool, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to serialize mirror message")
		return
	}
	tok := s.Client.Publish(topic, s.QOS, retained, payload)
	if !tok.WaitTimeout(tokenTimeout) {
		s.Logger.Warn().Str("topic", topic).Msg("mirror publish timed out")
		return
	}
	if err := tok.Error(); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("failed to publish mirror message")
		return
	}
	s.Logger.Debug().Str("topic", topic).Msg("mirror published")
}

func telemetryMessage(s telemetry.Snapshot) Telemetry {
	m := Telemetry{
		History:   make([]uint16, len(s.History)),
		Connected: s.Connected,
		Status:    render.Classify(s),
		Timestamp: time.Now().UTC(),
	}
	for i, v := range s.History {
		m.History[i] = uint16(v)
	}
	if s.HasLatest {
		v := uint16(s.Latest)
		m.BPM = &v
	}
	return m
}

func linkEvent(st link.Status) LinkEvent {
	e := LinkEvent{
		State:     st.State.String(),
		Attempt:   st.Attempt,
		DelayMs:   st.Delay.Milliseconds(),
		Session:   st.Session,
		Timestamp: st.Since.UTC(),
	}
	if st.Err != nil {
		e.Error = st.Err.Error()
	}
	return e
}
