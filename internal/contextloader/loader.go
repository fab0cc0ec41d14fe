// Package contextloader reads the per-app context tree (lore bible, style
// rules, locations, characters, world files) and deterministically selects
// the optional pieces for a run.
//
// Selection is seeded from a stable hash of the run ID so re-running the
// same run_id against the same context tree picks the same files.
package contextloader

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	LoreBibleFile = "lore_bible.md"

	minCharacters = 2
	maxCharacters = 3
)

// Selection is the loaded context payload handed to the stages, plus the
// chosen basenames recorded in state for reproducibility.
type Selection struct {
	LoreBible        string
	StyleRules       string
	LocationName     string // basename, "" when no locations exist
	LocationContext  string
	CharacterNames   []string // basenames, outline order
	CharacterContext string
	WorldFiles       []string // basenames folded into LoreBible
}

// Error wraps a fatal context-loading failure.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("load context %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WarnFunc receives non-fatal loader diagnostics.
type WarnFunc func(format string, args ...any)

// Load reads the context tree rooted at contextDir. lore_bible.md is
// required; style files are loaded unconditionally in filename order;
// one location and 2-3 characters are selected by the run-seeded PRNG.
// When includeWorld is set, world/*.md are folded into the lore payload.
func Load(contextDir, runID string, includeWorld bool, warn WarnFunc) (*Selection, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}

	lorePath := filepath.Join(contextDir, LoreBibleFile)
	lore, err := os.ReadFile(lorePath)
	if err != nil {
		return nil, &Error{Path: filepath.ToSlash(lorePath), Err: err}
	}

	sel := &Selection{
		LoreBible:      string(lore),
		CharacterNames: []string{},
		WorldFiles:     []string{},
	}

	// One PRNG drives every random choice in this call.
	rng := rand.New(rand.NewSource(int64(seedFromRunID(runID))))

	styles, err := readDirSorted(filepath.Join(contextDir, "style"))
	if err != nil {
		return nil, err
	}
	var styleParts []string
	for _, f := range styles {
		styleParts = append(styleParts, f.content)
	}
	sel.StyleRules = strings.Join(styleParts, "\n\n")

	locations, err := readDirSorted(filepath.Join(contextDir, "locations"))
	if err != nil {
		return nil, err
	}
	if len(locations) > 0 {
		pick := locations[rng.Intn(len(locations))]
		sel.LocationName = pick.name
		sel.LocationContext = pick.content
	}

	characters, err := readDirSorted(filepath.Join(contextDir, "characters"))
	if err != nil {
		return nil, err
	}
	if len(characters) > 0 {
		want := minCharacters + rng.Intn(maxCharacters-minCharacters+1)
		if len(characters) < minCharacters {
			warn("fewer than %d characters available in %s, using all %d",
				minCharacters, filepath.ToSlash(contextDir), len(characters))
		}
		if want > len(characters) {
			want = len(characters)
		}
		picked := pickN(rng, characters, want)
		var charParts []string
		for _, c := range picked {
			sel.CharacterNames = append(sel.CharacterNames, c.name)
			charParts = append(charParts, c.content)
		}
		sel.CharacterContext = strings.Join(charParts, "\n\n")
	}

	if includeWorld {
		world, err := readDirSorted(filepath.Join(contextDir, "world"))
		if err != nil {
			return nil, err
		}
		var worldParts []string
		for _, w := range world {
			sel.WorldFiles = append(sel.WorldFiles, w.name)
			worldParts = append(worldParts, w.content)
		}
		if len(worldParts) > 0 {
			sel.LoreBible = sel.LoreBible + "\n\n" + strings.Join(worldParts, "\n\n")
		}
	}

	return sel, nil
}

type contextFile struct {
	name    string // basename
	content string
}

// readDirSorted loads every *.md under dir in filename order. A missing
// directory is non-fatal and yields an empty list.
func readDirSorted(dir string) ([]contextFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Path: filepath.ToSlash(dir), Err: err}
	}

	var files []contextFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, &Error{Path: filepath.ToSlash(filepath.Join(dir, e.Name())), Err: err}
		}
		files = append(files, contextFile{name: e.Name(), content: string(data)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// pickN selects n distinct files, preserving the original filename order
// of the chosen set so prompts are stable regardless of draw order.
func pickN(rng *rand.Rand, files []contextFile, n int) []contextFile {
	idx := rng.Perm(len(files))[:n]
	sort.Ints(idx)
	picked := make([]contextFile, 0, n)
	for _, i := range idx {
		picked = append(picked, files[i])
	}
	return picked
}

// seedFromRunID hashes the run ID with FNV-1a, mod 2^32. A fixed byte hash
// keeps selection stable across processes and platforms.
func seedFromRunID(runID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(runID))
	return h.Sum32()
}
