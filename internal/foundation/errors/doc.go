// Package errors provides classified, structured errors for docpages.
//
// Every non-trivial failure is wrapped into a ClassifiedError carrying a
// category (config, git, build, publish, ...), a severity, a retry strategy,
// and a free-form context map. Callers branch on category and retry strategy
// instead of string matching.
package errors
