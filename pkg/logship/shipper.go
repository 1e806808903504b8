package logship

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/rs/zerolog"
)

const writeTimeout = 5 * time.Second

// Recorder accepts records for shipping. Ship never blocks.
type Recorder interface {
	Ship(rec Record)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Ship(Record) {}

// Shipper moves records from request handlers to a Sink on its own
// goroutine. When the buffer is full new records are dropped and counted.
type Shipper struct {
	sink   Sink
	ch     chan Record
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger zerolog.Logger
}

// NewShipper creates a shipper with room for buffer pending records.
func NewShipper(sink Sink, buffer int) *Shipper {
	if buffer <= 0 {
		buffer = 1
	}
	return &Shipper{
		sink:   sink,
		ch:     make(chan Record, buffer),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("logship"),
	}
}

// Start begins delivering records.
func (s *Shipper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop delivers what is already queued, then closes the sink.
func (s *Shipper) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.sink.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close log sink")
		}
	})
}

// Ship queues rec without blocking.
func (s *Shipper) Ship(rec Record) {
	select {
	case s.ch <- rec:
	default:
		metrics.LogRecordsDropped.Inc()
	}
}

func (s *Shipper) run() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.ch:
			s.write(rec)
		case <-s.stopCh:
			for {
				select {
				case rec := <-s.ch:
					s.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Shipper) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.sink.Write(ctx, rec); err != nil {
		metrics.LogRecordsDropped.Inc()
		metrics.UpdateComponent(metrics.ComponentLogShip, false, err.Error())
		s.logger.Warn().Err(err).Str("name", rec.Name).Msg("Failed to ship log record")
		return
	}
	metrics.UpdateComponent(metrics.ComponentLogShip, true, "")
}
