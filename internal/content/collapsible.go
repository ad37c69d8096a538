package content

import (
	"fmt"
	"strings"
	"sync"
)

// CollapsibleManager tracks which rendered results are expanded. Results
// longer than the fold threshold are shown folded until toggled.
type CollapsibleManager struct {
	expanded  map[int]bool
	threshold int
	mutex     sync.RWMutex
}

// NewCollapsibleManager creates a manager folding results longer than threshold lines
func NewCollapsibleManager(threshold int) *CollapsibleManager {
	return &CollapsibleManager{
		expanded:  make(map[int]bool),
		threshold: threshold,
	}
}

// Toggle flips the expanded state of a result and returns the new state
func (cm *CollapsibleManager) Toggle(id int) bool {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.expanded[id] = !cm.expanded[id]
	return cm.expanded[id]
}

// IsExpanded reports whether a result is shown in full
func (cm *CollapsibleManager) IsExpanded(id int) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.expanded[id]
}

// Forget drops the state of a result
func (cm *CollapsibleManager) Forget(id int) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	delete(cm.expanded, id)
}

// Foldable reports whether text exceeds the fold threshold
func (cm *CollapsibleManager) Foldable(text string) bool {
	return cm.threshold > 0 && strings.Count(text, "\n")+1 > cm.threshold
}

// Apply returns text folded to the threshold unless the result is expanded.
func (cm *CollapsibleManager) Apply(id int, text string) string {
	if !cm.Foldable(text) || cm.IsExpanded(id) {
		return text
	}

	lines := strings.SplitN(text, "\n", cm.threshold+1)
	hidden := strings.Count(lines[cm.threshold], "\n") + 1
	head := strings.Join(lines[:cm.threshold], "\n")
	return head + "\n" + fmt.Sprintf("▶ %d more lines (result %d folded)", hidden, id)
}
