package dbconn

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

var reVersion = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// Flavor represents the connected server release: major, minor, and patch
// version numbers.
type Flavor struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion takes a version string (the @@version variable) and returns
// the corresponding Flavor. If parsing fails, the zero Flavor is returned.
func ParseVersion(version string) Flavor {
	matches := reVersion.FindStringSubmatch(version)
	if matches == nil {
		return Flavor{}
	}
	var parts [3]int
	for n := range parts {
		v, err := strconv.Atoi(matches[n+1])
		if err != nil {
			return Flavor{}
		}
		parts[n] = v
	}
	return Flavor{Major: parts[0], Minor: parts[1], Patch: parts[2]}
}

// String returns the flavor in major.minor.patch form.
func (fl Flavor) String() string {
	return fmt.Sprintf("%d.%d.%d", fl.Major, fl.Minor, fl.Patch)
}

// MinVersion returns true if the flavor is at least the supplied
// major[.minor[.patch]] version.
func (fl Flavor) MinVersion(major int, others ...int) bool {
	var minor, patch int
	if len(others) > 0 {
		minor = others[0]
	}
	if len(others) > 1 {
		patch = others[1]
	}
	if fl.Major != major {
		return fl.Major > major
	}
	if fl.Minor != minor {
		return fl.Minor > minor
	}
	return fl.Patch >= patch
}

// AtomicDDL returns true if the server supports atomic DDL, allowing a sync
// plan to execute inside a single transaction. This is MySQL 8.0+.
func (fl Flavor) AtomicDDL() bool {
	return fl.MinVersion(8, 0)
}

// InstantAddColumn returns true if ALTER TABLE ... ADD COLUMN can use the
// INSTANT algorithm (MySQL 8.0+).
func (fl Flavor) InstantAddColumn() bool {
	return fl.MinVersion(8, 0)
}

// DetectFlavor queries the server version through the adapter and validates
// the 8.0.0 floor. Servers below 8.0.0 yield a SchemaStateError.
func DetectFlavor(ctx context.Context, ex Executor) (Flavor, error) {
	result, err := ex.Query(ctx, "SELECT @@version AS version")
	if err != nil {
		return Flavor{}, err
	}
	if len(result.Rows) != 1 {
		return Flavor{}, &SchemaStateError{Message: "version query returned no rows"}
	}
	raw, _ := result.Rows[0]["version"]
	version := toString(raw)
	fl := ParseVersion(version)
	if fl == (Flavor{}) {
		return Flavor{}, &SchemaStateError{Message: fmt.Sprintf("cannot parse server version %q", version)}
	}
	if !fl.MinVersion(8, 0) {
		return fl, &SchemaStateError{Message: fmt.Sprintf("server version %s is below the supported 8.0.0 floor", fl)}
	}
	return fl, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}
