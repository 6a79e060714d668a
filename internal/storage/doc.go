// Package storage provides the storage engine of the metadata server.
//
// The engine owns the in-memory metadata tree and the section contributor
// state, records every mutation in the operation log and periodically
// externalizes everything as a checkpoint.
//
// Architecture:
//
//   - Metadata Tree: ordered leaves in a copy-on-write B-tree
//   - Sections: make-stable, version change, canceled tokens, idempotent
//     requests, groups and object store deletes
//   - Oplog: append-only mutation log with rollover at checkpoint time
//   - Checkpoint: checksummed, atomically published snapshots
//
// The engine supports:
//
//   - Durability: a mutation is acknowledged after its log append
//   - Recovery: latest valid checkpoint plus replay of later log entries,
//     verified entry by entry against the logged status
//   - Idempotence: requests carrying an id are answered once
//   - Encryption: optional log payload encryption using adaptive ciphers
package storage
