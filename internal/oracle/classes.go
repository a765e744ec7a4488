// internal/oracle/classes.go
package oracle

import (
	"fmt"
	"strings"
)

// ClassList is the ordered set of class names a multiclass model was trained
// on. It is loaded from the model bundle at startup; index i of a probability
// vector refers to Name(i).
type ClassList struct {
	names []string
	index map[string]int
}

// NewClassList validates names (non-empty, unique, non-blank) and fixes their order.
func NewClassList(names []string) (ClassList, error) {
	if len(names) == 0 {
		return ClassList{}, fmt.Errorf("class list is empty")
	}
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return ClassList{}, fmt.Errorf("class %d has a blank name", i)
		}
		if j, dup := idx[n]; dup {
			return ClassList{}, fmt.Errorf("duplicate class %q at %d and %d", n, j, i)
		}
		idx[n] = i
	}
	return ClassList{names: append([]string(nil), names...), index: idx}, nil
}

func (c ClassList) Len() int          { return len(c.names) }
func (c ClassList) Name(i int) string { return c.names[i] }
func (c ClassList) Names() []string   { return append([]string(nil), c.names...) }

// Index returns the registration position of name.
func (c ClassList) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}
