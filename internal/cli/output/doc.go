// Package output renders command results for chunkmeta-cli.
//
// Results are written as an aligned table (the default), JSON or YAML.
// Table rendering reflects over structs, slices and maps and hides fields
// tagged `table:"wide"` unless wide output is requested.
package output
