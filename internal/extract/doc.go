// Package extract locates function and class-like constructs in source text
// using two structural scanners: an indentation-depth scan for Python-style
// source and a brace-balance scan for C-like languages. It also intersects
// extracted spans with unified-diff hunks to find the functions a commit
// actually touched.
//
// The scanners are single-pass line scans, not parsers. Braces inside string
// literals or comments can skew the depth counter; that trade-off is accepted
// for speed and language breadth.
package extract
