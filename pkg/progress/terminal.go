package progress

import (
	"io"

	"github.com/pterm/pterm"
)

// RenderTerminal draws events with pterm until the channel closes. The main
// bar counts steps; sub bars show per-tool or per-download progress.
func RenderTerminal(events <-chan Event, w io.Writer) {
	var main, sub *pterm.ProgressbarPrinter
	var spinner *pterm.SpinnerPrinter

	stopSub := func() {
		if sub != nil {
			_, _ = sub.Stop()
			sub = nil
		}
		if spinner != nil {
			_ = spinner.Stop()
			spinner = nil
		}
	}

	for e := range events {
		switch e.Kind {
		case MainStart:
			if e.Length > 0 {
				main, _ = pterm.DefaultProgressbar.
					WithWriter(w).
					WithTotal(int(e.Length)).
					WithTitle(e.Message).
					WithRemoveWhenDone(false).
					Start()
			} else {
				pterm.Info.WithWriter(w).Println(e.Message)
			}
		case MainUpdate:
			if main != nil {
				main.Add(int(e.Delta))
			}
		case MainEnd:
			stopSub()
			if main != nil {
				_, _ = main.Stop()
				main = nil
			}
			if e.Message != "" {
				pterm.Success.WithWriter(w).Println(e.Message)
			}
		case SubStart:
			stopSub()
			if e.Length > 0 {
				sub, _ = pterm.DefaultProgressbar.
					WithWriter(w).
					WithTotal(int(e.Length)).
					WithTitle(e.Message).
					WithRemoveWhenDone(true).
					Start()
			} else {
				spinner, _ = pterm.DefaultSpinner.WithWriter(w).Start(e.Message)
			}
		case SubUpdate:
			if sub != nil {
				sub.Add(int(e.Delta))
			}
		case SubEnd:
			if spinner != nil && e.Message != "" {
				spinner.Success(e.Message)
				spinner = nil
			}
			stopSub()
		case Message:
			pterm.Info.WithWriter(w).Println(e.Message)
		case Complete:
			stopSub()
		}
	}
	stopSub()
	if main != nil {
		_, _ = main.Stop()
	}
}
