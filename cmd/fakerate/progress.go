package main

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type progress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// newProgress shows a bar of total steps on w, or nothing with
// --no-progress.
func newProgress(w io.Writer, name string, total int) *progress {
	if noProgress {
		return &progress{}
	}
	p := mpb.New(mpb.WithOutput(w))
	bar := p.AddBar(int64(total),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.CountersNoUnit("%d / %d", decor.WC{W: 12}),
		),
		mpb.AppendDecorators(decor.OnComplete(decor.Percentage(), "done")),
	)
	return &progress{p: p, bar: bar}
}

// Increment is safe for concurrent use.
func (pr *progress) Increment() {
	if pr.bar != nil {
		pr.bar.Increment()
	}
}

// Func returns Increment, or nil when no bar is shown.
func (pr *progress) Func() func() {
	if pr.bar == nil {
		return nil
	}
	return pr.Increment
}

// Wait completes the bar, also after a failure, and waits for it to render.
func (pr *progress) Wait() {
	if pr.p == nil {
		return
	}
	pr.bar.SetTotal(-1, true)
	pr.p.Wait()
}
