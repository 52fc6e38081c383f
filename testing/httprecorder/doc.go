/*
Package httprecorder records every request sent to an HTTP handler, so a test can later
check what a service under test sent to its upstream, including the trace context it
propagated.
*/
package httprecorder
