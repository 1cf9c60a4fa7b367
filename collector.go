package typecodec

import "sync"

// Collector is the out-of-band sink for issues gathered in collect mode.
// A Collector may be shared by concurrent decodes.
type Collector struct {
	mu     sync.Mutex
	issues Issues
}

// Add records an issue.
func (c *Collector) Add(it Issue) {
	c.mu.Lock()
	c.issues = AppendIssues(c.issues, it)
	c.mu.Unlock()
}

// Issues returns a copy of the collected issues.
func (c *Collector) Issues() Issues {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.issues) == 0 {
		return nil
	}
	out := make(Issues, len(c.issues))
	copy(out, c.issues)
	return out
}

// Len reports the number of collected issues.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

// Reset drops all collected issues.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.issues = nil
	c.mu.Unlock()
}
