package view

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local.dev/fitsocial-backend/internal/models"
)

func TestCanModify(t *testing.T) {
	assert.True(t, CanModify(models.Session{UID: "u1"}, "u1"))
	assert.False(t, CanModify(models.Session{UID: "u1"}, "u2"))
	// 未登入一律不可
	assert.False(t, CanModify(models.Session{}, ""))
}

// changeLog 收 onChange 回呼，拿來驗證時序
type changeLog struct {
	mu     sync.Mutex
	states []OptionsState
}

func (l *changeLog) record(s OptionsState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *changeLog) snapshot() []OptionsState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OptionsState(nil), l.states...)
}

func TestOptionsToggleShowsAndHides(t *testing.T) {
	o := NewOptions(time.Hour, nil)
	assert.Equal(t, Hidden, o.State())

	assert.Equal(t, Shown, o.Toggle())
	// 計時器未到前再點一下立即收合
	assert.Equal(t, Hidden, o.Toggle())
	assert.Equal(t, Hidden, o.State())
}

func TestOptionsAutoHideAfterTimeout(t *testing.T) {
	log := &changeLog{}
	o := NewOptions(20*time.Millisecond, log.record)

	o.Toggle()
	require.Eventually(t, func() bool { return o.State() == Hidden }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []OptionsState{Shown, Hidden}, log.snapshot())
}

func TestOptionsManualHideCancelsTimer(t *testing.T) {
	log := &changeLog{}
	o := NewOptions(30*time.Millisecond, log.record)

	o.Toggle()
	o.Toggle()
	// 計時器已取消：等超過 timeout 不會再多一次 Hidden
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []OptionsState{Shown, Hidden}, log.snapshot())
}

func TestOptionsStop(t *testing.T) {
	log := &changeLog{}
	o := NewOptions(20*time.Millisecond, log.record)

	o.Toggle()
	o.Stop()
	// 拆掉之後計時器不得再打 callback，Toggle 也無效
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []OptionsState{Shown}, log.snapshot())
	assert.Equal(t, Shown, o.Toggle())
}

func TestOptionsStopIdempotent(t *testing.T) {
	o := NewOptions(0, nil)
	o.Stop()
	o.Stop()
	assert.Equal(t, Hidden, o.State())
}
