package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// historyStampFormat names audit files down to the millisecond so two runs in
// the same second never collide.
const historyStampFormat = "2006-01-02_15-04-05.000"

type historyRecord struct {
	Timestamp       string      `json:"timestamp"`
	OperationsCount int         `json:"operations_count"`
	Operations      []Operation `json:"operations"`
}

// WriteHistory records the applied operations of one sync run as a pair of
// files under dir: a JSON record and a replayable SQL script sharing the same
// timestamp stem. The directory is created as needed.
func WriteHistory(dir string, at time.Time, ops []Operation) (jsonPath, sqlPath string, err error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", "", fmt.Errorf("cannot create history dir %s: %s", dir, err)
	}
	stamp := at.Format(historyStampFormat)
	jsonPath = filepath.Join(dir, stamp+"_sync.json")
	sqlPath = filepath.Join(dir, stamp+"_sync.sql")

	record := historyRecord{
		Timestamp:       at.Format(time.RFC3339),
		OperationsCount: len(ops),
		Operations:      ops,
	}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(jsonPath, append(encoded, '\n'), 0666); err != nil {
		return "", "", err
	}

	var script strings.Builder
	fmt.Fprintf(&script, "-- semitexa sync %s: %d operation(s)\n\n", record.Timestamp, len(ops))
	for _, op := range ops {
		fmt.Fprintf(&script, "-- %s\n%s;\n\n", op.Description, op.SQL)
	}
	if err := os.WriteFile(sqlPath, []byte(script.String()), 0666); err != nil {
		return "", "", err
	}
	return jsonPath, sqlPath, nil
}
