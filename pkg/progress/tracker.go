package progress

// Tracker wraps a Reporter with one method per event kind. The zero
// Tracker discards.
type Tracker struct {
	r Reporter
}

// NewTracker returns a Tracker; a nil reporter discards.
func NewTracker(r Reporter) Tracker {
	if r == nil {
		r = Discard
	}
	return Tracker{r: r}
}

func (t Tracker) Reporter() Reporter {
	if t.r == nil {
		return Discard
	}
	return t.r
}

func (t Tracker) report(e Event) {
	if t.r != nil {
		t.r.Report(e)
	}
}

func (t Tracker) MainStart(msg string, length int64) {
	t.report(Event{Kind: MainStart, Message: msg, Length: length, Unit: UnitItems})
}

func (t Tracker) MainUpdate(delta int64) {
	t.report(Event{Kind: MainUpdate, Delta: delta})
}

func (t Tracker) MainEnd(msg string) {
	t.report(Event{Kind: MainEnd, Message: msg})
}

func (t Tracker) SubStart(msg string, length int64, unit Unit) {
	t.report(Event{Kind: SubStart, Message: msg, Length: length, Unit: unit})
}

func (t Tracker) SubUpdate(delta int64) {
	t.report(Event{Kind: SubUpdate, Delta: delta})
}

func (t Tracker) SubEnd(msg string) {
	t.report(Event{Kind: SubEnd, Message: msg})
}

func (t Tracker) Message(text string) {
	t.report(Event{Kind: Message, Message: text})
}

func (t Tracker) Complete() {
	t.report(Event{Kind: Complete})
}

// CountingWriter reports every write as sub progress. Used to wrap
// download bodies.
type CountingWriter struct {
	T Tracker
}

func (w CountingWriter) Write(p []byte) (int, error) {
	w.T.SubUpdate(int64(len(p)))
	return len(p), nil
}
