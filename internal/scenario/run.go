package scenario

import (
	"context"
	"math"
	"time"
)

// maxReadOnly は read only フェーズの上限
const maxReadOnly = 10 * time.Second

// allocate は total の 1/3 を秒単位に丸めて返す
func allocate(total time.Duration) time.Duration {
	return time.Duration(math.Round(total.Seconds()/3)) * time.Second
}

// Run は全フェーズを順に実行する。
// populate → read only → write only → validate → read & write → validate →
// check & write → validate。失敗したフェーズで停止し、Err と FailedPhase を記録する。
func (e *Engine) Run(ctx context.Context, readers, writers int, total time.Duration) *Result {
	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
		KeyCount:     e.config.KeyCount,
		HitKeyCount:  e.config.HitKeyCount(),
		Readers:      readers,
		Writers:      writers,
	}

	if err := e.acquire(); err != nil {
		result.Err = err
		result.EndTime = time.Now()
		return result
	}
	defer e.release()

	e.log.Info("", "=== Run '%s' started ===", e.config.Name)
	if e.config.Description != "" {
		e.log.Info("", "Description: %s", e.config.Description)
	}

	third := allocate(total)
	keyCount := e.config.KeyCount

	steps := []struct {
		name string
		fn   func() error
	}{
		{PhasePopulate, func() error {
			r, err := e.populate(ctx, keyCount)
			result.addPhase(r)
			return err
		}},
		{PhaseReadOnly, func() error {
			r, err := e.evalRead(ctx, readers, min(third, maxReadOnly))
			result.addPhase(r)
			return err
		}},
		{PhaseWriteOnly, func() error {
			r, err := e.evalWrite(ctx, writers, third)
			result.addPhase(r)
			return err
		}},
		{PhaseValidate, func() error {
			v, err := e.validate(ctx, keyCount)
			result.addValidation(v)
			return err
		}},
		{PhaseReadWrite, func() error {
			r, err := e.evalReadWrite(ctx, readers, writers, third, false)
			result.addPhase(r)
			return err
		}},
		{PhaseValidate, func() error {
			v, err := e.validate(ctx, keyCount)
			result.addValidation(v)
			return err
		}},
		{PhaseCheckWrite, func() error {
			r, err := e.evalReadWrite(ctx, readers, writers, third, true)
			result.addPhase(r)
			return err
		}},
		{PhaseValidate, func() error {
			v, err := e.validate(ctx, keyCount)
			result.addValidation(v)
			return err
		}},
	}

	for _, step := range steps {
		e.log.Info("", ">>> %s", step.name)
		if err := step.fn(); err != nil {
			result.Err = err
			result.FailedPhase = step.name
			e.log.Error("", "run halted in %s: %v", step.name, err)
			break
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.last = result
	e.mu.Unlock()

	e.log.Info("", "=== Run '%s' completed ===", e.config.Name)
	return result
}
