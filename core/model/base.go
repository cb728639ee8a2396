package model

import (
	"sync"

	"github.com/google/uuid"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体。
// 学習状態と、ログ出力で使う個体IDを保持する。
type BaseEstimator struct {
	mu    sync.RWMutex
	state EstimatorState
	id    string
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NotFitted
}

// EstimatorID は初回呼び出し時に生成されるUUIDを返す
func (e *BaseEstimator) EstimatorID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e.id
}
