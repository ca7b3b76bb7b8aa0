// Package template parses markdown-style maintenance checklists into
// ordered (area, tasks) sections.
//
// Expected shape:
//
//	## Area Title
//	- Item 1
//	- Item 2
//
//	## Another Area
//	- Item 3
package template

import "strings"

// Section is one checklist area with its task lines in document order.
type Section struct {
	Title string
	Tasks []string
}

// Parse splits a checklist document into sections. A line starting with a
// second- or third-level heading opens a section; a bullet line adds a task
// to the open section. Everything else is ignored. Parsing never fails:
// documents without headings yield no sections, headings without bullets
// yield empty sections, and bullets before the first heading are dropped.
func Parse(doc string) []Section {
	var (
		sections []Section
		current  *Section
	)
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### "):
			if current != nil {
				sections = append(sections, *current)
			}
			title := strings.TrimSpace(strings.TrimLeft(line, "# "))
			current = &Section{Title: title}
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			if current == nil {
				// bullet before any heading has no area to attach to
				continue
			}
			task := strings.TrimSpace(strings.TrimLeft(line, "-* "))
			if task != "" {
				current.Tasks = append(current.Tasks, task)
			}
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}
