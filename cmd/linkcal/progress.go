package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/linkcal/linkcal/pkg/calibrate"
)

// barProgress shows classification progress on an interactive terminal.
type barProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
}

// newProgress returns a progress bar writer when w is a terminal, or nil so
// the engine stays silent in pipes and CI logs.
func newProgress(w io.Writer, disabled bool) calibrate.Progress {
	if disabled {
		return nil
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &barProgress{writer: w}
}

func (p *barProgress) Start(title string, total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Step() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *barProgress) Done() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		fmt.Fprintln(p.writer)
	}
	p.bar = nil
}
