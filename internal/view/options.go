// Package view 放顯示層僅有的兩塊邏輯：owner 判定與列表項目的
// 「選項浮層」狀態機。浮層只有 Hidden/Shown 兩態，點一下切換、
// 放著不動固定秒數後自動收合；收尾時要取消計時器，
// 避免畫面拆掉後 callback 還打進來。
package view

import (
	"sync"
	"time"

	"local.dev/fitsocial-backend/internal/models"
)

// CanModify：只有作者本人看得到編輯/刪除入口
func CanModify(sess models.Session, ownerID string) bool {
	return sess.UID != "" && sess.UID == ownerID
}

type OptionsState int

const (
	Hidden OptionsState = iota
	Shown
)

// 預設自動收合時間
const DefaultOptionsTimeout = 2500 * time.Millisecond

type Options struct {
	mu       sync.Mutex
	state    OptionsState
	timer    *time.Timer
	timeout  time.Duration
	stopped  bool
	onChange func(OptionsState)
}

// NewOptions 建一個浮層狀態機。timeout <= 0 用預設值；
// onChange 在每次狀態變化時被叫（可為 nil）。
func NewOptions(timeout time.Duration, onChange func(OptionsState)) *Options {
	if timeout <= 0 {
		timeout = DefaultOptionsTimeout
	}
	return &Options{timeout: timeout, onChange: onChange}
}

func (o *Options) State() OptionsState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Toggle：Hidden→Shown 並起計時器；Shown→Hidden 立即收合並取消計時。
func (o *Options) Toggle() OptionsState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return o.state
	}
	if o.state == Hidden {
		o.setLocked(Shown)
		o.timer = time.AfterFunc(o.timeout, o.expire)
	} else {
		o.cancelTimerLocked()
		o.setLocked(Hidden)
	}
	return o.state
}

// expire：計時到且還在 Shown 才收合；手動 toggle 過就什麼都不做
func (o *Options) expire() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped || o.state != Shown {
		return
	}
	o.timer = nil
	o.setLocked(Hidden)
}

// Stop：畫面拆除時呼叫。取消未到期的計時器，之後的 Toggle 無效。
func (o *Options) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	o.cancelTimerLocked()
}

func (o *Options) cancelTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Options) setLocked(s OptionsState) {
	if o.state == s {
		return
	}
	o.state = s
	if o.onChange != nil {
		o.onChange(s)
	}
}
