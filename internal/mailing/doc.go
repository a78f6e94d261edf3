// Package mailing prepares campaigns from tabular sources: CSV parsing and
// validation, placeholder personalization (with an optional Liquid mode),
// the file-backed template store, and the audit log export.
package mailing
