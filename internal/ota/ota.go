// Package ota validates remote update commands and installs new binaries.
package ota

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command identity.
const (
	Entity    = "envnode_sht3x"
	CmdUpdate = "ota"
)

// Status values published while an update is handled.
const (
	StatusCheck   = "check"
	StatusApply   = "applying"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusInvalid = "invalid"
)

// CommandWait is how long the node waits for an update command after
// announcing the check.
const CommandWait = 15 * time.Second

var (
	ErrInvalidCommand = errors.New("invalid update command")
	ErrBadVersion     = errors.New("bad version")
)

// Version is a MAJOR.MINOR firmware version.
type Version struct {
	Major, Minor int
}

// ParseVersion parses "MAJOR.MINOR".
func ParseVersion(s string) (Version, error) {
	majStr, minStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
	}
	a, err := strconv.Atoi(majStr)
	if err != nil || a < 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
	}
	b, err := strconv.Atoi(minStr)
	if err != nil || b < 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
	}
	return Version{Major: a, Minor: b}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Newer reports whether v is strictly newer than o.
func (v Version) Newer(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	return v.Minor > o.Minor
}

// Command is an update command received on the device's command topic.
type Command struct {
	Device  string `json:"device"`
	Entity  string `json:"entity"`
	Cmd     string `json:"cmd"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// ParseCommand decodes a command payload.
func ParseCommand(b []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(b, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return c, nil
}

// Validate checks the command is addressed to this device, is an update and
// carries a version strictly newer than current.
func (c Command) Validate(device string, current Version) error {
	switch {
	case c.Device != device:
		return fmt.Errorf("%w: device %q", ErrInvalidCommand, c.Device)
	case c.Entity != Entity:
		return fmt.Errorf("%w: entity %q", ErrInvalidCommand, c.Entity)
	case c.Cmd != CmdUpdate:
		return fmt.Errorf("%w: cmd %q", ErrInvalidCommand, c.Cmd)
	case c.URL == "":
		return fmt.Errorf("%w: missing url", ErrInvalidCommand)
	}
	v, err := ParseVersion(c.Version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if !v.Newer(current) {
		return fmt.Errorf("%w: version %s not newer than %s", ErrInvalidCommand, v, current)
	}
	return nil
}

// LatestImage picks the highest versioned "<name>_v<major>.<minor>" line from
// a newline-separated listing.
func LatestImage(listing, name string) (string, Version, bool) {
	prefix := name + "_v"
	var best string
	var bestV Version
	found := false

	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, prefix)
		if !ok {
			continue
		}
		v, err := ParseVersion(rest)
		if err != nil {
			continue
		}
		if !found || v.Newer(bestV) {
			best, bestV, found = line, v, true
		}
	}
	return best, bestV, found
}
