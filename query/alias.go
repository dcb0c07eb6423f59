package query

import "regexp"

// aliasPattern matches a quoted bilingual column alias, e.g.
// tbl.obj_nm "File Name|파일명". The alias must follow whitespace so that
// pipes inside larger quoted strings are left alone.
var aliasPattern = regexp.MustCompile(`(\s)"([^"\n]+)\|([^"\n]+)"`)

// SelectAlias rewrites every "first|second" column alias in text to the
// single label picked by first. Callers that pass no language preference
// skip this rewrite and the unresolved alias reaches the driver as-is.
func SelectAlias(text string, first bool) string {
	group := `${1}"${2}"`
	if !first {
		group = `${1}"${3}"`
	}
	return aliasPattern.ReplaceAllString(text, group)
}
