package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingArchiver struct {
	calls     int32
	olderThan time.Duration
	archived  int64
	err       error
}

func (c *countingArchiver) ArchiveStale(_ context.Context, olderThan time.Duration) (int64, error) {
	atomic.AddInt32(&c.calls, 1)
	c.olderThan = olderThan
	return c.archived, c.err
}

func TestRunArchiverRunOnce(t *testing.T) {
	runs := &countingArchiver{archived: 3}
	archiver := NewRunArchiver(runs, RunArchiverConfig{TTL: 48 * time.Hour}, nil)

	assert.Equal(t, int64(3), archiver.RunOnce(context.Background()))
	assert.Equal(t, 48*time.Hour, runs.olderThan)

	runs.err = errors.New("db down")
	assert.Zero(t, archiver.RunOnce(context.Background()))
}

func TestRunArchiverSchedules(t *testing.T) {
	runs := &countingArchiver{}
	archiver := NewRunArchiver(runs, RunArchiverConfig{Schedule: "@every 1s"}, nil)

	require.NoError(t, archiver.Start(context.Background()))
	defer archiver.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRunArchiverRejectsBadSchedule(t *testing.T) {
	archiver := NewRunArchiver(&countingArchiver{}, RunArchiverConfig{Schedule: "every now and then"}, nil)
	assert.Error(t, archiver.Start(context.Background()))
	archiver.Stop()
}
