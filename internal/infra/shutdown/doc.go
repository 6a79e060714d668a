// Package shutdown runs registered cleanup hooks when the process receives
// SIGINT or SIGTERM, or when the caller's context ends.
//
// Hooks run in reverse order of registration, so components registered
// while starting up are stopped in the opposite order. All hooks share
// one deadline.
package shutdown
