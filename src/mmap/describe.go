package mmap

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats page/byte counts with locale-aware digit grouping,
// so a diagnostic dump of a large mapping table reads as "4,096 pages"
// rather than "4096 pages".
var printer = message.NewPrinter(language.English)

// Describe renders a human-readable summary of every live mapping in
// t, for the fault-diagnostic dump described alongside diag.Dump.
func (t *Table) Describe() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.mappings) == 0 {
		return "mmap: no live mappings"
	}
	var b strings.Builder
	for id, m := range t.mappings {
		mode := "r-"
		if m.writable {
			mode = "rw"
		}
		start := m.pages[0]
		b.WriteString(printer.Sprintf("mmap#%d: %d pages (%s), base %#x\n",
			int(id), len(m.pages), mode, start.Addr()))
	}
	return b.String()
}
