package bridge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MinRunnerVersion is the oldest runner whose reporter side channel speaks
// the protocol this host expects.
const MinRunnerVersion = "1.2.0"

// ErrVersionTooOld wraps the one-line warning surfaced when the resolved
// runner predates MinRunnerVersion.
type ErrVersionTooOld struct {
	Runner  string
	Version string
}

func (e *ErrVersionTooOld) Error() string {
	return fmt.Sprintf("test runner %s version %s is older than required %s", e.Runner, e.Version, MinRunnerVersion)
}

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// CheckVersion runs `runner --version` once per cache lifetime and rejects
// incompatible runners before any test process is spawned. Unparseable
// output is tolerated: an exotic runner build should not block every run.
func (c *Cache) CheckVersion(runner string) error {
	c.mu.Lock()
	version, ok := c.versions[runner]
	c.mu.Unlock()

	if !ok {
		out, err := c.versionOutput(runner)
		if err != nil {
			return fmt.Errorf("query runner version: %w", err)
		}
		version = versionPattern.FindString(out)
		c.mu.Lock()
		c.versions[runner] = version
		c.mu.Unlock()
	}

	if version == "" {
		return nil
	}
	if compareVersions(version, MinRunnerVersion) < 0 {
		return &ErrVersionTooOld{Runner: runner, Version: version}
	}
	return nil
}

// compareVersions orders two dotted numeric versions: -1, 0 or 1.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
