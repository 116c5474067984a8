// Package files locates construction projects and their workbooks on disk.
//
// Discovery walks the configured projects root: every sub-directory is a
// project and every .xlsx, .xls or .xlsm file inside it is a workbook.
// Office lock files (names starting with "~") are never listed.
//
// Manager owns a directory of generated artifacts, such as exported reports,
// and prunes files older than the configured retention.
//
// ResolveWithin is the single place where user-supplied names are joined onto
// a root; it refuses any result that escapes the root.
package files
