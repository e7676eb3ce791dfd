package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cheesecave/backend/internal/agent/types"
	"cheesecave/backend/internal/fan"
	"cheesecave/backend/pkg/iothub"
)

func TestUpdateReportedAccepted(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	h, _ := newTestHandler(pub, &fakePin{})
	answerTwin(h, pub, http.StatusNoContent)

	err := h.UpdateReported(context.Background(), types.ReportedState{FanState: "on", Humidity: 85.12, Temperature: 54.5})
	if err != nil {
		t.Fatalf("UpdateReported() error = %v", err)
	}

	sent := pub.sent()
	if len(sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(sent))
	}

	if got, want := string(sent[0].payload), `{"fanstate":"on","humidity":85.12,"temperature":54.5}`; got != want {
		t.Errorf("payload = %s, want %s", got, want)
	}

	if _, err := iothub.ParseTwinReportedTopic(sent[0].topic); err != nil {
		t.Errorf("topic %q is not a reported patch: %v", sent[0].topic, err)
	}

	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if len(h.pending) != 0 {
		t.Errorf("pending = %d, want 0", len(h.pending))
	}
}

func TestUpdateReportedRejected(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	h, _ := newTestHandler(pub, &fakePin{})
	answerTwin(h, pub, http.StatusBadRequest)

	err := h.UpdateReported(context.Background(), types.ReportedState{FanState: "off"})
	if !errors.Is(err, ErrTwinRejected) {
		t.Errorf("UpdateReported() error = %v, want ErrTwinRejected", err)
	}
}

func TestUpdateReportedTimesOut(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	h := NewHandler(discardLogger(), pub, &fakePin{}, &fan.Register{}, 20*time.Millisecond)

	err := h.UpdateReported(context.Background(), types.ReportedState{FanState: "off"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("UpdateReported() error = %v, want deadline exceeded", err)
	}
}

func TestUpdateReportedPublishError(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("not connected")}
	h, _ := newTestHandler(pub, &fakePin{})

	if err := h.UpdateReported(context.Background(), types.ReportedState{}); err == nil {
		t.Error("UpdateReported() expected error when publish fails")
	}
}

func TestHandleTwinResponseIgnoresUnknownRequest(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(&fakePublisher{}, &fakePin{})

	// Must not block or panic.
	h.handleTwinResponse(nil, fakeMessage{topic: iothub.TwinResponseTopic(http.StatusNoContent, "nobody", 3)})
	h.handleTwinResponse(nil, fakeMessage{topic: "$iothub/twin/res/abc"})
}
