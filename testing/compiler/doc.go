/*
Package compiler builds the services under test into a temporary directory.

Builds are keyed on name, target and source: asking for the same binary again, even
concurrently, runs the go tool once and returns the same path. Cleanup removes every
binary built.

Builds run with CGO_ENABLED=0 from the target directory, so source is resolved as a
package path within the target module, for example "./cmd/echo-server".
*/
package compiler
