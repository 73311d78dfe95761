// Package archive packages a session directory into a single zip file for
// upload to a hosting provider.
//
// Every regular file below the directory is included; names inside the
// archive are slash-separated paths relative to the directory root. The
// archive is written to a temporary file and renamed into place, so a
// reader never observes a half-written deploy.zip.
package archive
