package process

import (
	"container/heap"

	"github.com/matrix-sim/matrix/sim/core"
)

// Task is a unit of work run to completion by Scheduler's owner.
type Task interface {
	Run()
}

// TaskFunc adapts a plain func to Task.
type TaskFunc func()

func (f TaskFunc) Run() { f() }

type scheduledTask struct {
	at   core.TimePoint
	seq  uint64
	task Task
}

// taskHeap orders by time, then by insertion sequence (FIFO on ties).
type taskHeap []scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(scheduledTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = scheduledTask{}
	*h = old[:n-1]
	return item
}

// Scheduler is a server's task queue.
type Scheduler struct {
	now   func() core.TimePoint
	tasks taskHeap
	seq   uint64
}

// NewScheduler creates an empty queue; now reads the World clock.
func NewScheduler(now func() core.TimePoint) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule enqueues t to run at the given time.
func (s *Scheduler) Schedule(at core.TimePoint, t Task) {
	s.seq++
	heap.Push(&s.tasks, scheduledTask{at: at, seq: s.seq, task: t})
}

// ScheduleAsap enqueues t at the current time, after tasks already due now.
func (s *Scheduler) ScheduleAsap(t Task) {
	s.Schedule(s.now(), t)
}

// After enqueues fn to run d jiffies from now.
func (s *Scheduler) After(d core.Jiffies, fn func()) {
	s.Schedule(s.now().Add(d), TaskFunc(fn))
}

func (s *Scheduler) IsEmpty() bool {
	return len(s.tasks) == 0
}

func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// NextTaskTime returns the time of the earliest task, core.Infinity if none.
func (s *Scheduler) NextTaskTime() core.TimePoint {
	if len(s.tasks) == 0 {
		return core.Infinity
	}
	return s.tasks[0].at
}

// TakeNext removes and returns the earliest task. Panics if the queue is empty.
func (s *Scheduler) TakeNext() Task {
	if len(s.tasks) == 0 {
		panic("Scheduler.TakeNext() on empty queue")
	}
	return heap.Pop(&s.tasks).(scheduledTask).task
}

// Rebase moves every task due before now to now, keeping their relative order
// ahead of tasks that were already scheduled at or after now.
func (s *Scheduler) Rebase(now core.TimePoint) {
	var overdue []scheduledTask
	for len(s.tasks) > 0 && s.tasks[0].at < now {
		overdue = append(overdue, heap.Pop(&s.tasks).(scheduledTask))
	}
	if len(overdue) == 0 {
		return
	}
	// Rebuild with fresh sequence numbers: overdue first, then the rest.
	rest := make([]scheduledTask, 0, len(s.tasks))
	for len(s.tasks) > 0 {
		rest = append(rest, heap.Pop(&s.tasks).(scheduledTask))
	}
	for _, t := range overdue {
		s.Schedule(now, t.task)
	}
	for _, t := range rest {
		s.Schedule(t.at, t.task)
	}
}

// Reset drops every pending task.
func (s *Scheduler) Reset() {
	s.tasks = nil
}
