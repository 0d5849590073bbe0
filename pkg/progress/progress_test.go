// pkg/progress/progress_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test event ordering, non-blocking delivery and sink adapters

package progress_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDeliversInOrder(t *testing.T) {
	ch := progress.NewChannel()
	tr := progress.NewTracker(ch)

	tr.MainStart("installing", 3)
	tr.SubStart("tool-a", 0, progress.UnitItems)
	tr.SubEnd("tool-a done")
	tr.MainUpdate(1)
	tr.Message("hello")
	tr.MainEnd("done")
	tr.Complete()
	ch.Close()

	var kinds []progress.Kind
	for e := range ch.Events() {
		kinds = append(kinds, e.Kind)
		assert.False(t, e.Time.IsZero())
	}
	ch.Wait()

	assert.Equal(t, []progress.Kind{
		progress.MainStart, progress.SubStart, progress.SubEnd,
		progress.MainUpdate, progress.Message, progress.MainEnd, progress.Complete,
	}, kinds)
}

func TestChannelNeverBlocksProducer(t *testing.T) {
	ch := progress.NewChannel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			ch.Report(progress.Event{Kind: progress.SubUpdate, Delta: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on a consumer that is not reading")
	}

	ch.Close()
	var total int64
	for e := range ch.Events() {
		total += e.Delta
	}
	assert.Equal(t, int64(10000), total)
}

func TestReportAfterCloseIsDropped(t *testing.T) {
	ch := progress.NewChannel()
	ch.Close()
	ch.Report(progress.Event{Kind: progress.Message, Message: "late"})

	count := 0
	for range ch.Events() {
		count++
	}
	assert.Zero(t, count)
}

func TestFanoutAndNilTracker(t *testing.T) {
	var mu sync.Mutex
	var got []string
	collect := progress.ReporterFunc(func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Message)
	})

	tr := progress.NewTracker(progress.Fanout{collect, nil, collect})
	tr.Message("twice")
	assert.Equal(t, []string{"twice", "twice"}, got)

	assert.NotPanics(t, func() { progress.NewTracker(nil).Complete() })
	assert.NotPanics(t, func() { progress.Tracker{}.Message("dropped") })
}

func TestLogLineWriter(t *testing.T) {
	var got []string
	tr := progress.NewTracker(progress.ReporterFunc(func(e progress.Event) {
		require.Equal(t, progress.Message, e.Kind)
		got = append(got, e.Message)
	}))

	w := progress.LogLineWriter{T: tr, MinLevel: zerolog.InfoLevel}
	logger := zerolog.New(w)
	logger.Debug().Msg("too quiet")
	logger.Info().Msg("installing cargo-nextest")
	logger.Error().Msg("tool failed")
	_, _ = w.Write([]byte("not json\n"))

	assert.Equal(t, []string{"installing cargo-nextest", "tool failed"}, got)
}

func TestRenderTerminalDrains(t *testing.T) {
	ch := progress.NewChannel()
	tr := progress.NewTracker(ch)
	tr.MainStart("installing", 2)
	tr.SubStart("download", 10, progress.UnitBytes)
	tr.SubUpdate(10)
	tr.SubEnd("")
	tr.MainUpdate(2)
	tr.MainEnd("finished")
	ch.Close()

	var buf bytes.Buffer
	progress.RenderTerminal(ch.Events(), &buf)
	assert.Contains(t, buf.String(), "finished")
}
