package runner

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	cases := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE a (x INT); INSERT INTO a VALUES (1);",
			want:   []string{"CREATE TABLE a (x INT)", "INSERT INTO a VALUES (1)"},
		},
		{
			name:   "semicolon in string",
			script: "INSERT INTO a VALUES ('x;y'); SELECT 1",
			want:   []string{"INSERT INTO a VALUES ('x;y')", "SELECT 1"},
		},
		{
			name:   "escaped quote",
			script: "INSERT INTO a VALUES ('it''s; fine')",
			want:   []string{"INSERT INTO a VALUES ('it''s; fine')"},
		},
		{
			name:   "quoted identifiers",
			script: `SELECT "a;b", [c;d], ` + "`e;f`" + ` FROM t`,
			want:   []string{`SELECT "a;b", [c;d], ` + "`e;f`" + ` FROM t`},
		},
		{
			name:   "comments",
			script: "-- setup; ignored\nSELECT 1; /* a; b */ SELECT 2; -- trailing",
			want:   []string{"-- setup; ignored\nSELECT 1", "/* a; b */ SELECT 2"},
		},
		{
			name:   "empty",
			script: " ;; \n ",
			want:   nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitStatements(tc.script)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLeadingKeyword(t *testing.T) {
	cases := map[string]string{
		"select * from t":           "SELECT",
		"  \n\tInsert into t":       "INSERT",
		"-- note\n  update t set":   "UPDATE",
		"/* x */ /* y */ with c as": "WITH",
		"":                          "",
		"-- only a comment":         "",
		"(SELECT 1)":                "",
	}
	for in, want := range cases {
		if got := LeadingKeyword(in); got != want {
			t.Fatalf("LeadingKeyword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReturnsRows(t *testing.T) {
	for _, stmt := range []string{"SELECT 1", "with x as (select 1) select * from x", "VALUES (1)", "PRAGMA table_info(t)", "EXPLAIN SELECT 1"} {
		if !ReturnsRows(stmt) {
			t.Fatalf("expected %q to return rows", stmt)
		}
	}
	for _, stmt := range []string{"INSERT INTO t VALUES (1)", "UPDATE t SET a = 1", "DELETE FROM t", "CREATE TABLE t (a)"} {
		if ReturnsRows(stmt) {
			t.Fatalf("did not expect %q to return rows", stmt)
		}
	}
}
