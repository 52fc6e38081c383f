/*
Package system manages the startup, running and shutdown of a harness service binary.

A service runs a few things in the background (its HTTP server, the health endpoint)
and must shut down cleanly on SIGTERM, because that is how the process supervisor in
testing/runner asks it to stop before escalating to SIGKILL.
*/
package system
