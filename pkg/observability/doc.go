/*
Package observability provides tools for monitoring the inquiry pipeline.

It turns engine lifecycle hooks into Prometheus metrics and structured log lines, and
combines several hook sets into one so both can run side by side.
*/
package observability
