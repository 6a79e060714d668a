// Package oplog provides the append-only mutation log of the metadata
// server.
//
// Every mutation applied to the in-memory state is recorded as an entry
// carrying a strictly increasing sequence number and the status the
// mutation completed with. Recovery loads the latest checkpoint and
// replays the entries logged after it.
//
// Features:
//
//   - Batched Writes: Configurable batch size and sync interval
//   - File Rotation: Size based, plus explicit Rollover at checkpoint time
//   - Encryption: Optional payload encryption using adaptive ciphers
//   - Compaction: Removal of segments covered by a published checkpoint
//   - Torn Tail Repair: A partially written final frame is truncated on open
//
// Format:
//
//	log.<segment-id>
//	[magic:8 "CMOPLOG\x01"]
//	[Entry]*
//	[checksum:32 SHA-256 of all bytes above] (absent for the active segment)
//
// Entry wire format:
//
//	[Length:4][CRC32:4][Op:1][Payload:Length-5]
//
// Where:
//   - Length = CRC32 + Op + Payload (big-endian uint32)
//   - CRC32 covers Op+Payload (IEEE)
//   - Payload is JSON: sequence number, status, timestamp and the op data
//     (or its encrypted form)
package oplog
