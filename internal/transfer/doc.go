// Package transfer decides which card videos are new to the archive and
// copies them in, one file at a time.
//
// Newness is decided purely by basename: a file whose name already exists in
// the archive is skipped regardless of size or content. Each copy lands under
// a temporary ".partial" name and is renamed into place only after it
// completes, so an interrupted copy never leaves a full-named file that later
// runs would mistake for an archived video.
package transfer
