// Package domain defines the core domain models for chunkmeta.
//
// Domain models are pure value objects without any IO dependencies.
// This package contains:
//
//   - Errors: coded error sentinels shared by the tree, the section
//     contributors, the mutation log and the checkpoint writer/loader
//   - DelegationToken: the text form of a delegation token as recorded
//     in the canceled-token log
//
// Error classes map to the failure taxonomy of the persistence layer:
// caller-contract (ARG), checkpoint write/read (CP) and log replay (LOG).
// Integrity errors are grouped by IsIntegrity so recovery can decide to
// fall back to an older checkpoint.
package domain
