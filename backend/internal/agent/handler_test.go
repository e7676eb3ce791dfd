package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/iothub"
)

type published struct {
	operationID string
	topic       string
	payload     []byte
}

// fakePublisher records publishes and optionally reacts to them.
type fakePublisher struct {
	mu     sync.Mutex
	msgs   []published
	err    error
	onSend func(p published)
}

func (f *fakePublisher) PublishRaw(_ context.Context, operationID, topic string, payload []byte) error {
	p := published{operationID: operationID, topic: topic, payload: payload}

	f.mu.Lock()
	f.msgs = append(f.msgs, p)
	err, onSend := f.err, f.onSend
	f.mu.Unlock()

	if err != nil {
		return err
	}

	if onSend != nil {
		go onSend(p)
	}

	return nil
}

func (f *fakePublisher) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]published(nil), f.msgs...)
}

type fakePin struct {
	mu     sync.Mutex
	high   bool
	writes int
	err    error
	// onSet runs after a successful write.
	onSet func()
}

func (p *fakePin) SetFan(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writes++
	if p.err != nil {
		return p.err
	}

	p.high = on

	if p.onSet != nil {
		p.onSet()
	}

	return nil
}

func (p *fakePin) level() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.high, p.writes
}

var errPinStuck = errors.New("pin stuck")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(pub *fakePublisher, pin *fakePin) (*Handler, *fan.Register) {
	state := &fan.Register{}

	return NewHandler(discardLogger(), pub, pin, state, time.Second), state
}

// answerTwin makes the publisher answer every reported patch with status.
func answerTwin(h *Handler, pub *fakePublisher, status int) {
	pub.onSend = func(p published) {
		if p.operationID != opTwinReported {
			return
		}

		rid, err := iothub.ParseTwinReportedTopic(p.topic)
		if err != nil {
			return
		}

		h.deliverTwinResponse(iothub.TwinResponse{Status: status, RequestID: rid, Version: 2})
	}
}
