// Package workspace manages the ephemeral staging directories builds use
// for render intermediates. Directories are timestamped under the system
// temp dir (e.g. bindery-20260825-142231-1234) and removed on Cleanup;
// nothing in a workspace survives the build that created it.
package workspace
