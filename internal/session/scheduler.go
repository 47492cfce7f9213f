package session

import (
    "sync"
    "time"
)

// Scheduler runs keyed, cancellable delayed tasks. Scheduling a key that is already armed
// replaces the earlier task.
type Scheduler interface {
    Schedule(key string, d time.Duration, fn func())
    // Cancel disarms key and reports whether a task was pending. It never waits for a
    // task that already started.
    Cancel(key string) bool
    Stop()
}

type timerTask struct {
    timer *time.Timer
    token uint64
}

// TimerScheduler backs Scheduler with time.AfterFunc. Each task carries a token so a timer
// that fires after Cancel or a replacement finds its token gone and does nothing.
type TimerScheduler struct {
    mu      sync.Mutex
    tasks   map[string]timerTask
    next    uint64
    stopped bool
}

func NewTimerScheduler() *TimerScheduler {
    return &TimerScheduler{tasks: make(map[string]timerTask)}
}

func (s *TimerScheduler) Schedule(key string, d time.Duration, fn func()) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.stopped { return }
    if cur, ok := s.tasks[key]; ok { cur.timer.Stop() }
    s.next++
    token := s.next
    s.tasks[key] = timerTask{token: token, timer: time.AfterFunc(d, func() {
        s.mu.Lock()
        cur, ok := s.tasks[key]
        if !ok || cur.token != token {
            s.mu.Unlock()
            return
        }
        delete(s.tasks, key)
        s.mu.Unlock()
        fn()
    })}
}

func (s *TimerScheduler) Cancel(key string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    cur, ok := s.tasks[key]
    if !ok { return false }
    cur.timer.Stop()
    delete(s.tasks, key)
    return true
}

// Pending reports how many tasks are armed.
func (s *TimerScheduler) Pending() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.tasks)
}

func (s *TimerScheduler) Stop() {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.stopped = true
    for k, t := range s.tasks {
        t.timer.Stop()
        delete(s.tasks, k)
    }
}
