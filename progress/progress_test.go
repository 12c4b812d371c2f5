package progress

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0X1A/File-Forklift/rsyncworker"
)

type fakeSink struct {
	mu            sync.Mutex
	files         int
	errs          int
	totalSyncs    []rsyncworker.Stats
	todoFiles     int64
	todoTotalSize int64
}

func (f *fakeSink) File(string, rsyncworker.Outcome, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files++
}

func (f *fakeSink) Error(string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs++
}

func (f *fakeSink) TotalSync(s rsyncworker.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalSyncs = append(f.totalSyncs, s)
}

func (f *fakeSink) Todo(numFiles, totalSize int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todoFiles, f.todoTotalSize = numFiles, totalSize
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestAggregator_FoldsOutcomesConcurrently(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.ReportOutcome(rsyncworker.OutcomeCopied, 1)
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	assert.Equal(t, int64(50), snap.NumFiles)
	assert.Equal(t, int64(50), snap.Copied)
	assert.Equal(t, 50, sink.files)
}

func TestAggregator_EndSyncResetsAndForwards(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, testLogger())
	a.ReportOutcome(rsyncworker.OutcomeCopied, 10)

	snapshot := a.EndSync()
	assert.Equal(t, int64(1), snapshot.Copied)
	require.Len(t, sink.totalSyncs, 1)
	assert.Equal(t, int64(1), sink.totalSyncs[0].Copied)

	assert.Equal(t, int64(0), a.Snapshot().NumFiles)
}

func TestAggregator_TodoAccumulatesAndForwards(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, testLogger())

	a.Todo(10)
	a.Todo(5)

	sink.mu.Lock()
	files, total := sink.todoFiles, sink.todoTotalSize
	sink.mu.Unlock()
	assert.Equal(t, int64(2), files)
	assert.Equal(t, int64(15), total)
}

func TestAggregator_ReportErrorForwardsWithoutFoldingStats(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink, testLogger())
	a.ReportError("a.txt", assert.AnError)
	assert.Equal(t, 1, sink.errs)
	assert.Equal(t, int64(0), a.Snapshot().NumFiles)
}
