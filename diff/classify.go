package diff

import (
	"regexp"
	"strconv"
	"strings"
)

var reParenSize = regexp.MustCompile(`^[a-z]+\((\d+)\)`)

// Widening reports whether changing a column from oldType to newType is a
// pure widening, meaning no stored value can be truncated or lose precision.
// Both inputs are normalized type strings (lowercase, integer display widths
// stripped). Everything not explicitly listed as a widening is treated as
// potentially destructive.
func Widening(oldType, newType string) bool {
	if oldType == newType {
		return true
	}

	// varchar(N) -> varchar(M), M >= N
	if strings.HasPrefix(oldType, "varchar(") && strings.HasPrefix(newType, "varchar(") {
		return parenSize(newType) >= parenSize(oldType)
	}
	// varchar(*) -> any of the text family
	if strings.HasPrefix(oldType, "varchar(") && textRank(newType) >= 0 {
		return true
	}
	// text -> mediumtext -> longtext
	if oldRank, newRank := textRank(oldType), textRank(newType); oldRank >= 0 && newRank >= 0 {
		return newRank >= oldRank
	}
	// tinyint < smallint < int < bigint
	if oldRank, newRank := intRank(oldType), intRank(newType); oldRank >= 0 && newRank >= 0 {
		return newRank >= oldRank
	}
	// float -> double
	if oldType == "float" && newType == "double" {
		return true
	}
	// char(N) -> char(M) with M >= N, or char(*) -> varchar(*)
	if strings.HasPrefix(oldType, "char(") {
		if strings.HasPrefix(newType, "char(") {
			return parenSize(newType) >= parenSize(oldType)
		}
		if strings.HasPrefix(newType, "varchar(") {
			return true
		}
	}
	return false
}

func parenSize(typeStr string) int {
	matches := reParenSize.FindStringSubmatch(typeStr)
	if matches == nil {
		return -1
	}
	size, _ := strconv.Atoi(matches[1])
	return size
}

func textRank(typeStr string) int {
	switch typeStr {
	case "text":
		return 0
	case "mediumtext":
		return 1
	case "longtext":
		return 2
	}
	return -1
}

func intRank(typeStr string) int {
	// tinyint(1) is the boolean representation; ranking applies to the bare
	// integer family only.
	switch typeStr {
	case "tinyint":
		return 0
	case "smallint":
		return 1
	case "int":
		return 2
	case "bigint":
		return 3
	}
	return -1
}
