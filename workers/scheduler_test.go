package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("00:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 0, Minute: 5}, c)
	assert.Equal(t, "00:05", c.String())

	c, err = ParseClock(" 9:30 ")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 9, Minute: 30}, c)

	for _, bad := range []string{"", "930", "24:00", "12:60", "12:5", "ab:cd", "-1:10"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockNext(t *testing.T) {
	c := ClockTime{Hour: 9, Minute: 30}
	morning := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC), c.Next(morning))

	exactly := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC), c.Next(exactly))

	lateNight := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC), c.Next(lateNight))
}

func TestSchedulerRunsDueJobsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	var ran []string
	var seen []time.Time
	s := NewScheduler(time.UTC,
		Job{Name: "overdue", At: ClockTime{0, 5}, Run: func(_ context.Context, now time.Time) (int, error) {
			ran = append(ran, "overdue")
			seen = append(seen, now)
			return 3, nil
		}},
		Job{Name: "due-soon", At: ClockTime{9, 30}, Run: func(_ context.Context, now time.Time) (int, error) {
			ran = append(ran, "due-soon")
			seen = append(seen, now)
			cancel()
			return 0, errors.New("logged, not fatal")
		}},
	)
	s.now = func() time.Time { return clock }
	s.after = func(time.Duration) <-chan time.Time {
		// jump straight to the next job time
		switch {
		case clock.Before(time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)):
			clock = time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)
		default:
			clock = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
		}
		ch := make(chan time.Time, 1)
		ch <- clock
		return ch
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, []string{"overdue", "due-soon"}, ran)
	assert.Equal(t, 5, seen[0].Minute())
	assert.Equal(t, 9, seen[1].Hour())
}

func TestSchedulerWithoutJobsWaitsForCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewScheduler(nil).Run(ctx))
}
