package rules

import (
	"sync"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/risk"
)

// Live holds the rule set currently in effect and hands out the derived
// classifier and tier table. Apply swaps the whole snapshot atomically, so
// a request never sees half-updated rules.
type Live struct {
	mu         sync.RWMutex
	set        *Set
	classifier *errclass.Classifier
}

// NewLive starts from the given set (usually Default() or a loaded file).
func NewLive(set *Set) *Live {
	l := &Live{}
	l.Apply(set)
	return l
}

// Apply installs a new rule set.
func (l *Live) Apply(set *Set) {
	classifier := errclass.New(set.Patterns)
	l.mu.Lock()
	l.set = set
	l.classifier = classifier
	l.mu.Unlock()
}

// Classifier returns the classifier built from the current patterns.
func (l *Live) Classifier() *errclass.Classifier {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classifier
}

// Chains returns the current strategy chains.
func (l *Live) Chains() fixtree.Chains {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Chains
}

// Tiers returns the current compensation tier table.
func (l *Live) Tiers() []risk.CompensationTier {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.CompensationTiers
}
