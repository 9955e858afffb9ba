// Package main provides the fragment CLI: a tool that splits a patient
// records database into a public (Fs) and owner-only (Fo) fragment using
// a tuple-generating-dependency chase over declared sensitive constants.
//
// Usage:
//
//	fragment [flags] <command>
//
// Commands that touch the database (run, status, doctor) need
// database.url / FRAGMENT_DATABASE_URL or the discrete database.* fields
// set. Commands that only read files (validate) do not need a database.
package main

func main() {
	Execute()
}
