// Package confloader loads configuration from files, environment
// variables and maps using koanf, and watches configuration files for
// changes with fsnotify.
//
// Priority (highest to lowest):
//
//  1. Maps loaded by the caller (command-line flags)
//  2. Environment variables
//  3. Configuration file
//  4. Values already present in the target struct
//
// Environment variables use a double underscore to separate levels so
// that keys may contain single underscores:
//
//	CHUNKMETA_STORAGE__DATA_DIR=/var/lib/chunkmeta -> storage.data_dir
package confloader
