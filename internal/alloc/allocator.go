// Package alloc owns the numbering scheme for the flat output root shared by
// repository caches and task runs. Entries are named "<prefix>-<slug>" with a
// zero-padded numeric prefix that is unique and uniformly padded across the
// whole root.
//
// The allocator is single-threaded and single-process by design: one
// invocation of the tool runs sync and task allocation sequentially, so no
// internal locking is needed. Two processes racing on the same root is not
// supported.
package alloc

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// namePattern matches conforming entries: a numeric prefix, a hyphen, and a
// non-empty slug. Anything else in the root is ignored.
var namePattern = regexp.MustCompile(`^(\d+)-(.+)$`)

// entry is one conforming directory found during a scan.
type entry struct {
	num  int
	name string
	base string // slug part after the prefix
}

// Allocator assigns and repairs numeric prefixes within a single output root.
type Allocator struct {
	root string
}

// New creates an Allocator for the given output root. The directory is
// created if it does not exist.
func New(root string) (*Allocator, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output root %s: %w", root, err)
	}
	return &Allocator{root: root}, nil
}

// Root returns the output root path.
func (a *Allocator) Root() string {
	return a.root
}

// RepairAndAllocate scans the root, renames any entry whose prefix width does
// not match the required padding, and returns the next unused prefix as a
// padded string. The directory for the returned prefix is NOT created; the
// caller creates it immediately after allocation.
func (a *Allocator) RepairAndAllocate() (string, error) {
	entries, err := a.scan()
	if err != nil {
		return "", err
	}

	width := requiredWidth(maxNum(entries))

	if err := a.repair(entries, width); err != nil {
		return "", err
	}

	// Rescan after renames so the returned prefix reflects the repaired
	// state, including any entries bumped to new numbers on collision.
	entries, err = a.scan()
	if err != nil {
		return "", err
	}
	next := maxNum(entries) + 1
	width = requiredWidth(maxNum(entries))
	return pad(next, width), nil
}

// scan returns the conforming entries directly under the root.
func (a *Allocator) scan() ([]entry, error) {
	dirents, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("scan output root %s: %w", a.root, err)
	}

	var entries []entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		m := namePattern.FindStringSubmatch(d.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, entry{num: num, name: d.Name(), base: m[2]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	return entries, nil
}

// repair renames entries whose prefix width differs from the required
// padding, in ascending numeric order so relative ordering is preserved.
// Each entry keeps its number re-padded; if the padded name is already taken
// the next free number is used instead. Rename failures are skipped rather
// than surfaced - a stuck entry just keeps its old name.
func (a *Allocator) repair(entries []entry, width int) error {
	taken := make(map[string]bool, len(entries))
	used := make(map[int]bool, len(entries))
	for _, e := range entries {
		taken[e.name] = true
		used[e.num] = true
	}

	for _, e := range entries {
		if len(e.name)-len(e.base)-1 == width {
			continue
		}
		num := e.num
		newName := pad(num, width) + "-" + e.base
		if taken[newName] {
			for num = maxKey(used) + 1; used[num]; num++ {
			}
			newName = pad(num, width) + "-" + e.base
		}
		if newName == e.name {
			continue
		}
		if err := os.Rename(filepath.Join(a.root, e.name), filepath.Join(a.root, newName)); err != nil {
			continue
		}
		delete(taken, e.name)
		taken[newName] = true
		delete(used, e.num)
		used[num] = true
	}
	return nil
}

// requiredWidth returns the uniform padding width for a root whose largest
// prefix is max: wide enough for the next allocation, never narrower than
// two digits.
func requiredWidth(max int) int {
	next := max + 1
	w := len(strconv.Itoa(next))
	if w < 2 {
		w = 2
	}
	return w
}

func maxNum(entries []entry) int {
	max := 0
	for _, e := range entries {
		if e.num > max {
			max = e.num
		}
	}
	return max
}

func maxKey(m map[int]bool) int {
	max := 0
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

func pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
