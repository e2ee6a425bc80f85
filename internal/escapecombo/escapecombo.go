// Package escapecombo watches keyboard events for a configured multi-key
// chord that terminates the daemon cleanly, bypassing timing-jitter
// scheduling entirely. Grounded in kloak.c's register_esc_combo_event /
// parse_esc_key_str.
package escapecombo

import (
	"fmt"
	"strings"

	"github.com/bnema/keyveil/internal/keycodes"
)

// Combo is an ordered list of groups; each group is a set of
// interchangeable key codes. The combo fires when every group has at
// least one member simultaneously pressed.
type Combo struct {
	groups    [][]int
	satisfied []bool
}

// DefaultSpec is the default escape combo string per spec.md §6.
const DefaultSpec = "KEY_LEFTSHIFT,KEY_RIGHTSHIFT,KEY_ESC"

// Parse builds a Combo from a comma-separated list of groups, each group
// a '|'-separated list of key names (e.g. "KEY_LEFTSHIFT|KEY_RIGHTSHIFT,KEY_ESC").
// An unknown key name is a fatal CLI error.
func Parse(spec string) (*Combo, error) {
	groupStrs := strings.Split(spec, ",")
	if len(groupStrs) == 0 {
		return nil, fmt.Errorf("escapecombo: empty combo spec")
	}
	groups := make([][]int, 0, len(groupStrs))
	for _, gs := range groupStrs {
		names := strings.Split(gs, "|")
		group := make([]int, 0, len(names))
		for _, name := range names {
			code, err := keycodes.Lookup(strings.TrimSpace(name))
			if err != nil {
				return nil, fmt.Errorf("escapecombo: %w", err)
			}
			group = append(group, code)
		}
		groups = append(groups, group)
	}
	return &Combo{groups: groups, satisfied: make([]bool, len(groups))}, nil
}

// Feed applies a single keyboard event to the combo's tracked state and
// reports whether the combo is now fully satisfied (all groups
// simultaneously true).
func (c *Combo) Feed(code int, pressed bool) (fired bool) {
	for i, group := range c.groups {
		if containsCode(group, code) {
			c.satisfied[i] = pressed
		}
	}
	for _, s := range c.satisfied {
		if !s {
			return false
		}
	}
	return true
}

func containsCode(group []int, code int) bool {
	for _, c := range group {
		if c == code {
			return true
		}
	}
	return false
}
