package dbconn

import (
	"context"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		input    string
		expected Flavor
	}{
		{"8.0.36", Flavor{8, 0, 36}},
		{"8.4.2-log", Flavor{8, 4, 2}},
		{"5.7.44-0ubuntu0.18.04.1", Flavor{5, 7, 44}},
		{"garbage", Flavor{}},
		{"", Flavor{}},
	}
	for _, tc := range cases {
		if actual := ParseVersion(tc.input); actual != tc.expected {
			t.Errorf("ParseVersion(%q) returned %v, expected %v", tc.input, actual, tc.expected)
		}
	}
}

func TestFlavorMinVersion(t *testing.T) {
	fl := Flavor{8, 0, 36}
	cases := []struct {
		major, minor, patch int
		expected            bool
	}{
		{8, 0, 0, true},
		{8, 0, 36, true},
		{8, 0, 37, false},
		{8, 1, 0, false},
		{5, 7, 0, true},
		{9, 0, 0, false},
	}
	for _, tc := range cases {
		if actual := fl.MinVersion(tc.major, tc.minor, tc.patch); actual != tc.expected {
			t.Errorf("MinVersion(%d, %d, %d) on %v returned %t, expected %t",
				tc.major, tc.minor, tc.patch, fl, actual, tc.expected)
		}
	}
}

func TestFlavorCapabilities(t *testing.T) {
	if !(Flavor{8, 0, 0}).AtomicDDL() {
		t.Error("8.0.0 must support atomic DDL")
	}
	if (Flavor{5, 7, 44}).AtomicDDL() {
		t.Error("5.7 must not report atomic DDL")
	}
}

type versionExecutor struct {
	version string
}

func (v versionExecutor) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	return &QueryResult{
		Columns: []string{"version"},
		Rows:    []map[string]any{{"version": []byte(v.version)}},
	}, nil
}

func (v versionExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return Result{}, nil
}

func TestDetectFlavor(t *testing.T) {
	fl, err := DetectFlavor(context.Background(), versionExecutor{version: "8.0.36"})
	if err != nil {
		t.Fatal(err)
	}
	if fl != (Flavor{8, 0, 36}) {
		t.Errorf("unexpected flavor %v", fl)
	}
}

func TestDetectFlavorBelowFloor(t *testing.T) {
	_, err := DetectFlavor(context.Background(), versionExecutor{version: "5.7.44"})
	if _, ok := err.(*SchemaStateError); !ok {
		t.Errorf("expected SchemaStateError for a pre-8.0 server, got %v", err)
	}
}
