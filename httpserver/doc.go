/*
Package httpserver contains helpers for serving HTTP in harness services and tests.

A server is bound by New, so its address is known and connectable before Serve is
called. Builder adapts a server to the background package so any http.Handler can
be started for the duration of a test and shut down on release.
*/
package httpserver
