package statemachine

import (
	"slices"
	"time"
)

// Triggers recorded in the transition log.
const (
	TriggerTransition = "transition"
	TriggerEnterChain = "enter_chain"
	TriggerDelegate   = "delegate"
)

// TransitionRecord is one distinct (From, To, Trigger) edge observed by the engine.
// Timestamp is its most recent occurrence and Count how often it happened.
type TransitionRecord[S comparable] struct {
	From      S
	To        S
	Trigger   string
	Timestamp time.Time
	Count     int
}

type edge[S comparable] struct {
	from, to S
	trigger  string
}

// transitionLog keeps one record per (from, to, trigger) in first-seen order.
type transitionLog[S comparable] struct {
	index   map[edge[S]]int
	records []TransitionRecord[S]
}

func newTransitionLog[S comparable]() *transitionLog[S] {
	return &transitionLog[S]{index: make(map[edge[S]]int)}
}

func (l *transitionLog[S]) record(from, to S, trigger string) {
	key := edge[S]{from: from, to: to, trigger: trigger}
	now := time.Now()

	if i, ok := l.index[key]; ok {
		l.records[i].Timestamp = now
		l.records[i].Count++

		return
	}

	l.index[key] = len(l.records)
	l.records = append(l.records, TransitionRecord[S]{
		From:      from,
		To:        to,
		Trigger:   trigger,
		Timestamp: now,
		Count:     1,
	})
}

func (l *transitionLog[S]) snapshot() []TransitionRecord[S] {
	return slices.Clone(l.records)
}
