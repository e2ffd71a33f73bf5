package block

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Layout describes where block files live and how they are named:
// Dir/<Prefix><n><Ext>, with n the zero-based block number.
type Layout struct {
	Dir    string
	Prefix string
	Ext    string
}

// Name returns the file name of block n.
func (l Layout) Name(n int) string {
	return l.Prefix + strconv.Itoa(n) + l.Ext
}

// Path returns the full path of block n.
func (l Layout) Path(n int) string {
	return filepath.Join(l.Dir, l.Name(n))
}

// BlockNumber extracts the block number embedded in a file name. It reports
// false when the name lacks the prefix or extension, or when what remains
// between them is not a non-negative integer in canonical form: "+1" and
// "01" are not block numbers, so only block_1 claims block 1.
func (l Layout) BlockNumber(name string) (int, bool) {
	if !strings.HasSuffix(name, l.Ext) || !strings.HasPrefix(name, l.Prefix) {
		return 0, false
	}
	if len(name) < len(l.Prefix)+len(l.Ext) {
		return 0, false
	}
	digits := name[len(l.Prefix) : len(name)-len(l.Ext)]
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

// List returns the paths of every regular file in Dir carrying the block
// extension. Files with a block number come first, ascending by number;
// files without one follow in lexicographic order of their name. A missing
// directory yields an empty list.
func (l Layout) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading block directory: %w", err)
	}

	type numbered struct {
		n    int
		name string
	}
	var withNum []numbered
	var withoutNum []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, l.Ext) {
			continue
		}
		if n, ok := l.BlockNumber(name); ok {
			withNum = append(withNum, numbered{n: n, name: name})
		} else {
			withoutNum = append(withoutNum, name)
		}
	}
	sort.SliceStable(withNum, func(i, j int) bool {
		return withNum[i].n < withNum[j].n
	})
	sort.Strings(withoutNum)

	paths := make([]string, 0, len(withNum)+len(withoutNum))
	for _, f := range withNum {
		paths = append(paths, filepath.Join(l.Dir, f.name))
	}
	for _, name := range withoutNum {
		paths = append(paths, filepath.Join(l.Dir, name))
	}
	return paths, nil
}
