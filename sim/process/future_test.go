package process

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise_SetTwicePanics(t *testing.T) {
	f, p := NewContract[int]()
	p.SetValue(1)
	assert.PanicsWithValue(t, "promise already fulfilled", func() { p.SetValue(2) })
	assert.False(t, p.TrySet(3, nil))
	v, err := f.Result()
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_SubscribersRunInOrder(t *testing.T) {
	f, p := NewContract[string]()
	var calls []int
	f.Subscribe(func() { calls = append(calls, 1) })
	f.Subscribe(func() { calls = append(calls, 2) })
	p.SetValue("x")
	f.Subscribe(func() { calls = append(calls, 3) })
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestFuture_ResultOnPendingPanics(t *testing.T) {
	f, _ := NewContract[int]()
	assert.PanicsWithValue(t, "Future.Result() on pending future", func() { _, _ = f.Result() })
}

func TestThen(t *testing.T) {
	f, p := NewContract[int]()
	g := Then(f, func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return "v", nil
	})
	assert.False(t, g.IsReady())
	p.SetValue(5)
	v, err := g.Result()
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestQuorum_Majority(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1}, {2, 2}, {3, 2}, {4, 3}, {5, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Majority(tt.n), "Majority(%d)", tt.n)
	}
}

func TestQuorum_CompletesAtThreshold(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		threshold int
	}{
		{"N=3", 3, 2},
		{"N=5", 5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN n pending futures and a majority quorum over them
			fs := make([]*Future[int], tt.n)
			ps := make([]*Promise[int], tt.n)
			for i := range fs {
				fs[i], ps[i] = NewContract[int]()
			}
			q := Quorum(fs, Majority(tt.n))
			require.Equal(t, tt.threshold, Majority(tt.n))

			// WHEN threshold-1 complete, the quorum is pending
			for i := 0; i < tt.threshold-1; i++ {
				ps[i].SetValue(i)
			}
			assert.False(t, q.IsReady())

			// THEN the threshold-th success completes it with values in completion order
			ps[tt.n-1].SetValue(99)
			values, err := q.Result()
			require.NoError(t, err)
			assert.Len(t, values, tt.threshold)
			assert.Equal(t, 99, values[tt.threshold-1])
		})
	}
}

func TestQuorum_FailsWhenUnreachable(t *testing.T) {
	fs := make([]*Future[int], 3)
	ps := make([]*Promise[int], 3)
	for i := range fs {
		fs[i], ps[i] = NewContract[int]()
	}
	q := Quorum(fs, 2)
	boom := errors.New("boom")

	ps[0].SetError(boom)
	assert.False(t, q.IsReady())
	ps[1].SetError(boom)

	_, err := q.Result()
	assert.ErrorIs(t, err, boom)
	assert.NotPanics(t, func() { ps[2].SetValue(1) })
}

func TestQuorum_Bounds(t *testing.T) {
	v, err := Quorum[int](nil, 0).Result()
	assert.NoError(t, err)
	assert.Empty(t, v)
	assert.Panics(t, func() { Quorum([]*Future[int]{Ready(1)}, 2) })
}

func TestAll(t *testing.T) {
	v, err := All([]*Future[int]{Ready(1), Ready(2)}).Result()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)
}

func TestWithTimeout(t *testing.T) {
	l := newTestLoop()

	// GIVEN a future that never completes and one completing in time
	never, _ := NewContract[int]()
	soon, p := NewContract[int]()
	l.sched.After(5, func() { p.SetValue(7) })

	late := WithTimeout(l.sched, never, 10)
	inTime := WithTimeout(l.sched, soon, 10)
	l.runAll(10)

	_, err := late.Result()
	assert.ErrorIs(t, err, ErrTimeout)
	v, err := inTime.Result()
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}
