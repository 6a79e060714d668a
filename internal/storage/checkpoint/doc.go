// Package checkpoint writes and loads metadata checkpoints.
//
// A checkpoint is a text file named chkpt.<logSeq> holding the header, one
// line per tree leaf, the auxiliary sections and a SHA-256 trailer:
//
//	checkpoint/<logSeq>/<errChecksum>
//	checksum/last-line
//	version/1
//	filesysteminfo/fsid/<fsid>/crtime/<time>
//	fid/<fileIdSeed>
//	chunkId/<chunkIdSeed>
//	time/<time>
//	setintbase/16
//	log/<logName>
//
//	<leaf>*
//	<section>*        mkstable, chunkvers, delegatecancel, idempotent, group, objstoredelete
//	time/<time>
//	checksum/<sha256 of every preceding byte>
//
// Files are written to a temporary name, synced, and renamed into place.
// The symlink "latest" names the newest published checkpoint and is only
// replaced after the rename.
//
// Recovery Process:
//
//  1. Resolve latest, falling back to older checkpoints on integrity errors
//  2. Verify the trailer, then parse header, leaves and sections
//  3. Replay log segments from the header's log name past logSeq
package checkpoint
