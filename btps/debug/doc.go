// Package debug is the kernel's text console: zone-masked debug messages and
// hex dumps written to a host-supplied io.Writer.
//
// # Modes
//
// The console picks its mode from the platform it is created on.
//
// Direct (cooperative platforms): each message is written straight through.
// Form feeds are dropped, a message ending in '\n' gets a trailing '\r', a
// message ending in '\f' gets nothing and any other message gets "\n\r".
//
// Buffered (preemptive platforms): messages are appended to a fixed ring and
// nothing reaches the writer until IdleHook or Flush drains it. A trailing '\f'
// is removed and suppresses the line ending; otherwise '\r' is appended, plus
// '\n' unless the message already ended in one. A writer that finds the ring
// full sleeps a tick at a time until the drain makes room, so some goroutine
// must call IdleHook or Flush.
//
// # Zones
//
// Msg and DumpZone only produce output when their zone bit is set in the mask.
// Building with the btpsnodebug tag compiles both down to nothing; Printf and
// Dump are unaffected.
package debug
