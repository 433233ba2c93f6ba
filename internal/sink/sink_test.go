package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/internal/sink/mock"
	"github.com/MrWong99/realtalk/pkg/types"
)

func TestFanout_DeliversToAllDespiteFailures(t *testing.T) {
	t.Parallel()

	errJournal := errors.New("journal down")
	a := &mock.Sink{SinkName: "journal", FinalErr: errJournal, PartialErr: errJournal}
	b := &mock.Sink{SinkName: "bus"}
	f := sink.Fanout{a, b}
	ctx := context.Background()

	if err := f.Partial(ctx, "s1", types.TranscriptEvent{Kind: types.Partial, Text: "nam"}); !errors.Is(err, errJournal) {
		t.Errorf("Partial err = %v, want %v", err, errJournal)
	}
	err := f.Final(ctx, types.Translation{SessionID: "s1", Original: "namaste", Text: "hello"})
	if !errors.Is(err, errJournal) {
		t.Errorf("Final err = %v, want %v", err, errJournal)
	}

	if got := b.Finals(); len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("second sink finals = %+v", got)
	}
	if got := b.Partials(); len(got) != 1 || got[0].Text != "nam" {
		t.Errorf("second sink partials = %+v", got)
	}
}

func TestFanout_Close(t *testing.T) {
	t.Parallel()

	errClose := errors.New("close failed")
	a := &mock.Sink{CloseErr: errClose}
	b := &mock.Sink{}

	if err := (sink.Fanout{a, b}).Close(); !errors.Is(err, errClose) {
		t.Errorf("Close err = %v", err)
	}
	if a.CloseCalls() != 1 || b.CloseCalls() != 1 {
		t.Errorf("close calls = %d, %d", a.CloseCalls(), b.CloseCalls())
	}
}

func TestFanout_Empty(t *testing.T) {
	t.Parallel()

	var f sink.Fanout
	if err := f.Final(context.Background(), types.Translation{}); err != nil {
		t.Errorf("empty fanout Final = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("empty fanout Close = %v", err)
	}
}
