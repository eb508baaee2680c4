// Package sqlguard decides whether a SQL string is a pure read.
//
// The check is a textual defense-in-depth filter, not a SQL parser: comments
// are stripped with regular expressions, the remainder is split on ';', and
// every statement must start with SELECT and avoid a denylist of mutating
// keywords matched as whole words. Known limitations: a keyword inside a
// string literal or quoted identifier is still rejected (false positive),
// and mutating syntax that is not on the denylist would pass (false
// negative). Callers layer this check in front of every execution; it is not
// a substitute for database-side permissions.
package sqlguard

import (
	"regexp"
	"strings"
)

var (
	lineComments  = regexp.MustCompile(`--[^\n]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// forbiddenKeywords are rejected anywhere in a statement, even though every
// statement must already start with SELECT, to catch subqueries and
// statement-chaining tricks.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"REPLACE", "MERGE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL",
	"DECLARE", "SET", "USE", "BEGIN", "ATTACH", "DETACH",
}

// IsReadOnly reports whether sql consists solely of SELECT statements with
// no mutating keywords. Empty input (including input that is only comments)
// is not read-only.
func IsReadOnly(sql string) bool {
	cleaned := blockComments.ReplaceAllString(sql, " ")
	cleaned = lineComments.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return false
	}

	statements := make([]string, 0, 1)
	for _, stmt := range strings.Split(cleaned, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	if len(statements) == 0 {
		return false
	}

	for _, stmt := range statements {
		if !isSelectStatement(stmt) {
			return false
		}
	}
	return true
}

func isSelectStatement(stmt string) bool {
	// Collapse whitespace runs so keywords split across lines or tabs are
	// still seen as space-delimited words by the padded scan below.
	upper := strings.ToUpper(whitespace.ReplaceAllString(stmt, " "))
	if !strings.HasPrefix(upper, "SELECT") {
		return false
	}

	padded := " " + upper + " "
	for _, keyword := range forbiddenKeywords {
		if strings.Contains(padded, " "+keyword+" ") || strings.Contains(padded, " "+keyword+"(") {
			return false
		}
	}
	return true
}
