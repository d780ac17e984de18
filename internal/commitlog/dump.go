package commitlog

import (
	"fmt"
	"io"
	"strings"
)

// DumpTo writes one "version = keys" line per committed chain entry,
// newest first, to w; the all-zero root entry New links in is not
// written. It is a diagnostic only: no core operation depends on its
// output.
func (c *CommitLog) DumpTo(w io.Writer) error {
	c.mu.Lock()
	head := c.current
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		return ErrIllegalState
	}

	for e := head; e != nil && e.prev != nil; e = e.prev {
		keys := "ALL"
		if e.keys != nil {
			parts := make([]string, len(e.keys))
			for i, k := range e.keys {
				parts[i] = string(k)
			}
			keys = strings.Join(parts, ",")
		}
		if _, err := fmt.Fprintf(w, "%v.%d = %s\n", e.version, e.subVersion, keys); err != nil {
			return err
		}
	}
	return nil
}
