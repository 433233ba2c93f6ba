package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/realtalk/internal/translate"
	"github.com/MrWong99/realtalk/internal/voice"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/types"
)

// pipeline runs the capture session, the event router and the translation
// stage. Finals are queued so a slow translator never stalls the recognizer.
func (a *App) pipeline(ctx context.Context, sess *voice.Session) error {
	depth := max(a.cfg.Pipeline.QueueDepth, 1)
	events := make(chan types.TranscriptEvent, depth)
	finals := make(chan types.TranscriptEvent, depth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx, events)
	})
	g.Go(func() error {
		defer close(finals)
		return a.route(gctx, events, finals)
	})
	g.Go(func() error {
		a.deliver(gctx, finals)
		return nil
	})
	return g.Wait()
}

// route forwards partials to the sinks and queues finals for translation.
// It drains events until the session closes the channel.
func (a *App) route(ctx context.Context, events <-chan types.TranscriptEvent, finals chan<- types.TranscriptEvent) error {
	for ev := range events {
		if ev.Kind == types.Partial {
			_ = a.sinks.Partial(ctx, a.sessionID, ev)
			continue
		}
		select {
		case finals <- ev:
			a.metrics.QueueAdd(ctx, "finals", 1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (a *App) deliver(ctx context.Context, finals <-chan types.TranscriptEvent) {
	for ev := range finals {
		a.metrics.QueueAdd(ctx, "finals", -1)
		if ctx.Err() != nil {
			continue
		}
		a.handleFinal(ctx, ev)
	}
}

// handleFinal corrects, translates, displays and delivers one final.
func (a *App) handleFinal(ctx context.Context, ev types.TranscriptEvent) types.Translation {
	res := a.corrector.Load().Correct(stt.Transcript{Text: ev.Text, IsFinal: true})
	for _, c := range res.Corrections {
		slog.Debug("glossary correction", "from", c.Original, "to", c.Corrected, "score", c.Score)
	}

	src, tgt := translate.Direction(res.Text, a.src, a.tgt, a.cfg.Language.AutoDetect)
	out := a.translator.Translate(ctx, res.Text, src, tgt)
	if out.Err != nil {
		slog.Warn("translation failed", "source", src, "target", tgt, "err", out.Err)
	}

	tr := types.Translation{
		SessionID: a.sessionID,
		Source:    src,
		Target:    tgt,
		Original:  res.Text,
		Text:      out.Text,
		Truncated: out.Truncated,
		Degraded:  out.Degraded,
		At:        time.Now().UTC(),
	}
	a.show(tr)
	_ = a.sinks.Final(ctx, tr)
	return tr
}

// show prints one final as a source line and a target line.
func (a *App) show(tr types.Translation) {
	a.displayMu.Lock()
	defer a.displayMu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(tr.Source)), tr.Original)
	fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(tr.Target)), tr.Text)
	if tr.Truncated {
		b.WriteString(" (input truncated)")
	}
	b.WriteString("\n")
	if _, err := io.WriteString(a.display, b.String()); err != nil {
		slog.Warn("display write failed", "err", err)
	}
}
