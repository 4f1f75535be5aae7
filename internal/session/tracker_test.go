package session

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/lcw/internal/domain"
)

func TestTrackerRunCycle(t *testing.T) {
	mock := clock.NewMock()
	tr := NewTracker(mock)
	run, _, _, _ := tr.Stats()
	assert.Equal(t, 0, run)
	assert.Nil(t, tr.EndRun(domain.StateStopped), "no run open yet")

	start, ended := tr.StartRun()
	require.NotNil(t, start)
	assert.Nil(t, ended)
	assert.Equal(t, 1, start.Run)
	assert.False(t, start.Resumed)

	tr.SetPackage("com.example.app")
	tr.Record(&domain.LogRecord{Severity: domain.SeverityError})
	tr.Record(&domain.LogRecord{Severity: domain.SeverityWarn})
	tr.Record(&domain.LogRecord{Severity: domain.SeverityInfo})
	mock.Add(3 * time.Second)

	end := tr.EndRun(domain.StateStopped)
	require.NotNil(t, end)
	assert.Equal(t, 1, end.Run)
	assert.Equal(t, domain.StateStopped, end.Reason)
	assert.Equal(t, domain.RunSummary{TotalLines: 3, Errors: 1, Warnings: 1, DurationSeconds: 3}, end.Summary)

	// records outside a run are not counted
	tr.Record(&domain.LogRecord{Severity: domain.SeverityError})

	start, _ = tr.StartRun()
	assert.Equal(t, 2, start.Run)
	assert.True(t, start.Resumed)
	assert.Equal(t, "com.example.app", start.Package)

	run, lines, errs, warns := tr.Stats()
	assert.Equal(t, 2, run)
	assert.Zero(t, lines)
	assert.Zero(t, errs)
	assert.Zero(t, warns)
}

func TestTrackerStartRunClosesOpenRun(t *testing.T) {
	tr := NewTracker(clock.NewMock())
	tr.StartRun()
	tr.Record(&domain.LogRecord{Severity: domain.SeverityDebug})

	start, ended := tr.StartRun()
	require.NotNil(t, ended)
	assert.Equal(t, 1, ended.Run)
	assert.Equal(t, 1, ended.Summary.TotalLines)
	assert.Equal(t, 2, start.Run)
	assert.Equal(t, "", tr.Package())
}
