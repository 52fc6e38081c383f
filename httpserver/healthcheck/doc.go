/*
Package healthcheck serves the health endpoints of a harness service.

GET /health is the readiness contract the process supervisor in testing/runner polls
before handing a started service to a test: it answers 200 once every registered
ready check passes. /live reports liveness the same way.
*/
package healthcheck
