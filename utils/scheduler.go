package utils

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskScheduler 延时任务服务抽象：按task_key至多触发一次，
// 处理函数必须幂等（允许至少一次投递语义的兜底重放）。
type TaskScheduler interface {
	// Schedule 注册延时任务；同key未触发时重复注册为取消重排，已触发则忽略
	Schedule(fireAt time.Time, taskKey string, fn func())
	// Cancel 取消指定任务（未触发时生效）
	Cancel(taskKey string)
	// CancelPrefix 按前缀批量取消（用于拍卖会删除时清理其全部任务）
	CancelPrefix(prefix string)
}

// TimerScheduler 进程内定时器实现
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fired  map[string]struct{}
}

// NewTimerScheduler 创建进程内延时任务调度器
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[string]*time.Timer),
		fired:  make(map[string]struct{}),
	}
}

// Schedule 注册延时任务
func (s *TimerScheduler) Schedule(fireAt time.Time, taskKey string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 同key至多触发一次
	if _, ok := s.fired[taskKey]; ok {
		return
	}
	// 取消重排语义
	if old, ok := s.timers[taskKey]; ok {
		old.Stop()
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[taskKey] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if _, ok := s.fired[taskKey]; ok {
			s.mu.Unlock()
			return
		}
		s.fired[taskKey] = struct{}{}
		delete(s.timers, taskKey)
		s.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("延时任务执行panic", zap.String("task_key", taskKey), zap.Any("panic", r))
			}
		}()
		fn()
	})
}

// Cancel 取消指定任务
func (s *TimerScheduler) Cancel(taskKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[taskKey]; ok {
		t.Stop()
		delete(s.timers, taskKey)
	}
}

// CancelPrefix 按前缀批量取消
func (s *TimerScheduler) CancelPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		if strings.HasPrefix(key, prefix) {
			t.Stop()
			delete(s.timers, key)
		}
	}
}

// Pending 返回未触发的任务数（监控/测试用）
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
