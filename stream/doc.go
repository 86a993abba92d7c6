// Package stream provides the ordered, multi-subscriber push streams the
// multipart decoder publishes on, plus the single-consumer pipes that
// operators derive from them.
//
// A Channel delivers every published value to every active subscriber in
// publish order. Delivery blocks until each subscriber has received the value:
// the decoder paces itself against its slowest consumer instead of dropping
// events, because part ordering and losslessness are contractual. A Channel
// terminates exactly once, either cleanly via Close or with an error via
// Fail; every subscriber observes the termination exactly once through the
// closing of its receive channel and the Err accessor. Late subscribers miss
// values published before they attached; there is no replay.
//
// A Pipe is the single-consumer counterpart used as operator output. Helpers
// like multipart.FilterFiles read from any Source and write to a fresh Pipe.
package stream
