// Package store persists opaque session records as one YAML file per
// session id inside a configured directory.
//
// A Store maps ids to <dir>/<id>.yml and performs locked CRUD against
// those files: Create builds a record in memory, Flush writes it out
// under an advisory exclusive lock, Retrieve reads it back, Destroy
// removes it. A DirRegistry caches which directories have already been
// verified on disk so the stat/create happens once per path.
//
// Session files are plain YAML so they can be inspected and edited
// with ordinary tooling.
package store
