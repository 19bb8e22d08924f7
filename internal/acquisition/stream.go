package acquisition

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/model"
)

const maxEventSize = 4 << 20

// Stream delivers acquisition events in arrival order.
type Stream struct {
	events chan Event
	body   io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}

	mu  sync.Mutex
	err error
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, logger zerolog.Logger) *Stream {
	s := &Stream{
		events: make(chan Event),
		body:   body,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.read()
	return s
}

// Events is closed at end of stream, on context cancellation or on Close.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done is closed once the stream has stopped reading.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the transport error that ended the stream, if any.
// It is nil after a clean end of stream or an explicit Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		_ = s.body.Close()
	})
	return nil
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) read() {
	defer s.cancel()
	defer close(s.done)
	defer close(s.events)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() bool {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 && name == "" {
			return true
		}
		ev, known, err := decodeEvent(name, data.Bytes())
		switch {
		case !known:
			s.logger.Debug().Str("event", name).Msg("skipping unknown acquisition event")
			return true
		case err != nil:
			s.logger.Warn().Err(err).Str("event", name).Msg("skipping malformed acquisition event")
			return true
		}
		select {
		case s.events <- ev:
			return true
		case <-s.ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			if !dispatch() {
				s.finish(nil)
				return
			}
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			name = string(value)
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(value)
		}
	}

	if err := scanner.Err(); err != nil {
		s.finish(err)
		return
	}
	// a final event without the trailing blank line
	dispatch()
	s.finish(nil)
}

func (s *Stream) finish(readErr error) {
	if s.closed.Load() {
		return
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.setErr(model.NewProcessingError(model.KindNetwork, "acquisition stream interrupted", ctxErr))
		return
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		s.setErr(model.NewProcessingError(model.KindNetwork, "reading acquisition stream", readErr))
	}
}
