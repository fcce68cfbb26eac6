package fathom

import (
	"container/heap"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	// budgetEpsilon is the smallest remaining budget worth starting
	// another task for.
	budgetEpsilon = 100 * time.Microsecond
	// frameWindow is the rolling window of frame times the adaptive
	// target averages over.
	frameWindow = 60
	// emaKeep/emaBlend weight the exponential moving average of task
	// cost estimates.
	emaKeep  = 0.8
	emaBlend = 0.2
)

// Task is a unit of deferred work. Priority orders execution (higher
// first); EstimatedCost gates admission against the remaining frame
// budget; a non-zero Deadline makes the task urgent once expired, which
// bypasses the cost gate.
type Task struct {
	ID            string
	Priority      int
	EstimatedCost time.Duration
	Deadline      time.Time
	Run           func() error
}

type queuedTask struct {
	Task
	seq int // FIFO tiebreak within a priority
}

type taskQueue []*queuedTask

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].seq < q[j].seq
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)   { *q = append(*q, x.(*queuedTask)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// FrameScheduler is a cooperative, budget-aware task queue that amortizes
// expensive work across frames. Strictly cooperative: a task runs to
// completion once started. A task that returns an error or panics is
// logged and treated as completed, never retried.
//
// The frame-time target adapts: a rolling average of actual frame times
// above target*1.1 relaxes the target (more time per frame, floored at the
// 50 fps equivalent); a comfortably low average tightens it back toward
// the configured frame rate.
type FrameScheduler struct {
	log   *zap.Logger
	queue taskQueue
	seq   int

	target    time.Duration
	tightTime time.Duration // configured frame rate equivalent
	slackTime time.Duration // 50 fps equivalent, relax ceiling

	frameTimes [frameWindow]time.Duration
	frameIdx   int
	frameCount int

	// estimates carries the EMA-updated cost per task id across
	// re-schedules.
	estimates map[string]time.Duration

	now func() time.Time
}

// NewFrameScheduler creates a scheduler targeting the given frame rate.
// A non-positive rate defaults to 60 fps. log may be nil.
func NewFrameScheduler(targetFPS float64, log *zap.Logger) *FrameScheduler {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	if log == nil {
		log = zap.NewNop()
	}
	tight := time.Duration(float64(time.Second) / targetFPS)
	slack := time.Second / 50
	if slack < tight {
		slack = tight
	}
	return &FrameScheduler{
		log:       log,
		target:    tight,
		tightTime: tight,
		slackTime: slack,
		estimates: make(map[string]time.Duration),
		now:       time.Now,
	}
}

// Schedule queues a task for a future frame.
func (s *FrameScheduler) Schedule(t Task) {
	s.seq++
	heap.Push(&s.queue, &queuedTask{Task: t, seq: s.seq})
}

// ScheduleImmediate queues work at maximum priority with a deadline of
// "end of the current frame", so the next tick runs it regardless of cost.
func (s *FrameScheduler) ScheduleImmediate(id string, run func() error) {
	s.Schedule(Task{
		ID:       id,
		Priority: math.MaxInt,
		Deadline: s.now(),
		Run:      run,
	})
}

// Len returns the number of queued tasks.
func (s *FrameScheduler) Len() int { return s.queue.Len() }

// Target returns the current adaptive frame-time target.
func (s *FrameScheduler) Target() time.Duration { return s.target }

// Tick runs one frame's worth of queued tasks within the current budget
// and folds the measured frame time into the adaptive target. externalCost
// is time the frame already spent outside the scheduler (culling, LOD,
// rendering prep) and is subtracted from the budget up front.
func (s *FrameScheduler) Tick(externalCost time.Duration) {
	start := s.now()
	remaining := s.target - externalCost

	for s.queue.Len() > 0 && remaining > budgetEpsilon {
		top := s.queue[0]
		urgent := !top.Deadline.IsZero() && !s.now().Before(top.Deadline)
		if !urgent && s.estimateFor(top) > remaining {
			// Leave it queued; this frame is out of budget for it.
			break
		}
		heap.Pop(&s.queue)
		cost := s.runTask(top)
		s.updateEstimate(top.ID, cost)
		remaining -= cost
	}

	s.recordFrame(externalCost + s.now().Sub(start))
}

// estimateFor prefers the EMA-learned estimate over the caller's.
func (s *FrameScheduler) estimateFor(t *queuedTask) time.Duration {
	if learned, ok := s.estimates[t.ID]; ok {
		return learned
	}
	return t.EstimatedCost
}

// runTask executes the task with failure isolation and returns the
// measured cost.
func (s *FrameScheduler) runTask(t *queuedTask) time.Duration {
	begin := s.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return t.Run()
	}()
	cost := s.now().Sub(begin)
	if err != nil {
		s.log.Warn("scheduler task failed",
			zap.String("task", t.ID),
			zap.Duration("cost", cost),
			zap.Error(err))
	}
	return cost
}

// updateEstimate folds a measured cost into the per-id EMA.
func (s *FrameScheduler) updateEstimate(id string, measured time.Duration) {
	old, ok := s.estimates[id]
	if !ok {
		s.estimates[id] = measured
		return
	}
	s.estimates[id] = time.Duration(emaKeep*float64(old) + emaBlend*float64(measured))
}

// recordFrame appends a frame time to the rolling window and adapts the
// target.
func (s *FrameScheduler) recordFrame(frameTime time.Duration) {
	s.frameTimes[s.frameIdx] = frameTime
	s.frameIdx = (s.frameIdx + 1) % frameWindow
	if s.frameCount < frameWindow {
		s.frameCount++
	}

	var sum time.Duration
	for i := 0; i < s.frameCount; i++ {
		sum += s.frameTimes[i]
	}
	avg := sum / time.Duration(s.frameCount)

	switch {
	case avg > s.target+s.target/10:
		// Overloaded: relax toward the 50 fps floor.
		s.target += s.target / 10
		if s.target > s.slackTime {
			s.target = s.slackTime
		}
	case avg < s.target/2 && s.target > s.tightTime:
		// Comfortably under budget: tighten back toward the
		// configured rate.
		s.target -= s.target / 10
		if s.target < s.tightTime {
			s.target = s.tightTime
		}
	}
}
