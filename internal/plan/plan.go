// Package plan validates and normalizes user-specified page targets before
// any generation work starts. Validation is all-or-nothing: a single bad
// target aborts the whole command.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInput marks a fatal input validation failure. It is reported
// before any generation work and includes every offending value.
var ErrInvalidInput = errors.New("invalid input")

// promptSeparator joins prompts of merged duplicate edit targets.
const promptSeparator = " ALSO: "

// Pair is one raw (position, prompt) argument pair in submission order.
type Pair struct {
	Position int
	Prompt   string
}

// EditTarget is a validated replacement request for one page.
type EditTarget struct {
	Page   int
	Prompt string
}

// AddTarget is a validated insertion request. Anchor denotes "insert after
// page N"; 0 inserts before the first page.
type AddTarget struct {
	Anchor int
	Prompt string
}

// ParsePairs converts a flattened [pos, prompt, pos, prompt, ...] argument
// list into pairs. Odd counts, empty lists and non-integer positions are
// input errors.
func ParsePairs(args []string) ([]Pair, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no position/prompt pairs given", ErrInvalidInput)
	}
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("%w: arguments must be pairs of position and prompt", ErrInvalidInput)
	}

	pairs := make([]Pair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pos, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid page number %q", ErrInvalidInput, args[i])
		}
		pairs = append(pairs, Pair{Position: pos, Prompt: args[i+1]})
	}
	return pairs, nil
}

// NormalizeEdits merges duplicate pages and validates bounds for edit mode.
// Duplicates merge in first-seen page order with prompts joined by the
// separator marker. Every out-of-range page is reported in one error.
func NormalizeEdits(pairs []Pair, totalPages int) ([]EditTarget, error) {
	byPage := make(map[int]int) // page -> index into targets
	targets := make([]EditTarget, 0, len(pairs))

	for _, p := range pairs {
		if i, seen := byPage[p.Position]; seen {
			targets[i].Prompt += promptSeparator + p.Prompt
			continue
		}
		byPage[p.Position] = len(targets)
		targets = append(targets, EditTarget{Page: p.Position, Prompt: p.Prompt})
	}

	var invalid []string
	for _, t := range targets {
		if t.Page < 1 || t.Page > totalPages {
			invalid = append(invalid, strconv.Itoa(t.Page))
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: page numbers out of range [1,%d]: %s",
			ErrInvalidInput, totalPages, strings.Join(invalid, ", "))
	}

	return targets, nil
}

// NormalizeAdds validates insertion anchors for add mode and returns the
// targets in ascending-anchor order. Targets are never merged; submission
// order is deliberately discarded (anchors are positional, not sequential
// intents). For the k-th target in ascending order, each earlier insertion
// extends the valid range by one, so the bound is totalPages + k.
func NormalizeAdds(pairs []Pair, totalPages int) ([]AddTarget, error) {
	targets := make([]AddTarget, 0, len(pairs))
	for _, p := range pairs {
		targets = append(targets, AddTarget{Anchor: p.Position, Prompt: p.Prompt})
	}

	// Stable sort keeps submission order among equal anchors.
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Anchor < targets[j].Anchor
	})

	var invalid []string
	for k, t := range targets {
		if t.Anchor < 0 || t.Anchor > totalPages+k {
			invalid = append(invalid, strconv.Itoa(t.Anchor))
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: anchors out of range [0,%d]: %s",
			ErrInvalidInput, totalPages+len(targets)-1, strings.Join(invalid, ", "))
	}

	return targets, nil
}

// ParseRefs parses a comma-separated page list such as "5,6" into page
// numbers. Blank entries are skipped; non-integer entries are input errors.
func ParseRefs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var refs []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		page, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid style ref %q", ErrInvalidInput, part)
		}
		refs = append(refs, page)
	}
	return refs, nil
}
