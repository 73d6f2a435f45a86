// Package audit relays engine events to a pluggable [Sink] through a buffered
// [Dispatcher].
//
// Sinks: [NoOpSink], [ChannelSink] for tests, [JSONWriterSink] for line
// delimited files and [SlogSink] for the service log. The engine decides which
// events exist; this package only buffers and delivers them.
package audit
