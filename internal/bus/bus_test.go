package bus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrWong99/realtalk/internal/bus"
	"github.com/MrWong99/realtalk/pkg/types"
)

func startPublisher(t *testing.T, subject string) (*bus.Publisher, *nats.Conn) {
	t.Helper()
	p, err := bus.Connect(context.Background(), bus.Config{
		Subject:      subject,
		Embedded:     true,
		EmbeddedPort: -1,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	sub, err := nats.Connect(p.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	t.Cleanup(sub.Close)
	return p, sub
}

func subscribe(t *testing.T, nc *nats.Conn, subject string) *nats.Subscription {
	t.Helper()
	s, err := nc.SubscribeSync(subject)
	if err != nil {
		t.Fatalf("subscribe %s: %v", subject, err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return s
}

func TestPublisher_PartialAndFinal(t *testing.T) {
	t.Parallel()

	p, nc := startPublisher(t, "")
	partials := subscribe(t, nc, "realtalk.transcript.partial")
	finals := subscribe(t, nc, "realtalk.transcript.final")
	ctx := context.Background()

	if err := p.Partial(ctx, "s1", types.TranscriptEvent{
		Kind: types.Partial, Text: "नमस", Lang: types.Hindi, At: 768 * time.Millisecond,
	}); err != nil {
		t.Fatalf("Partial: %v", err)
	}
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	if err := p.Final(ctx, types.Translation{
		SessionID: "s1", Source: types.Hindi, Target: types.English,
		Original: "नमस्ते", Text: "Hello", At: at,
	}); err != nil {
		t.Fatalf("Final: %v", err)
	}

	msg, err := partials.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("partial not received: %v", err)
	}
	var pm bus.PartialMessage
	if err := json.Unmarshal(msg.Data, &pm); err != nil {
		t.Fatalf("decode partial: %v", err)
	}
	if pm.SessionID != "s1" || pm.Text != "नमस" || pm.Lang != "hi" || pm.OffsetMS != 768 {
		t.Errorf("partial = %+v", pm)
	}

	msg, err = finals.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("final not received: %v", err)
	}
	var fm bus.FinalMessage
	if err := json.Unmarshal(msg.Data, &fm); err != nil {
		t.Fatalf("decode final: %v", err)
	}
	if fm.Original != "नमस्ते" || fm.Translation != "Hello" || fm.Source != "hi" || fm.Target != "en" || !fm.Timestamp.Equal(at) {
		t.Errorf("final = %+v", fm)
	}
}

func TestPublisher_CustomSubject(t *testing.T) {
	t.Parallel()

	p, nc := startPublisher(t, "room7")
	finals := subscribe(t, nc, "room7.final")

	if err := p.Final(context.Background(), types.Translation{Text: "x"}); err != nil {
		t.Fatalf("Final: %v", err)
	}
	if _, err := finals.NextMsg(2 * time.Second); err != nil {
		t.Fatalf("final on custom subject not received: %v", err)
	}
}

func TestPublisher_Health(t *testing.T) {
	t.Parallel()

	p, _ := startPublisher(t, "")
	if !p.Healthy() || p.Check(context.Background()) != nil {
		t.Fatal("fresh publisher not healthy")
	}
	if p.Name() != "bus" {
		t.Errorf("Name = %q", p.Name())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Healthy() || p.Check(context.Background()) == nil {
		t.Error("closed publisher reported healthy")
	}
}

func TestConnect_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := bus.Connect(context.Background(), bus.Config{}); !errors.Is(err, types.ErrConfig) {
		t.Errorf("Connect err = %v, want ErrConfig", err)
	}
}
