// Package mailbox implements fixed-slot FIFO message queues backed by the
// kernel heap.
//
// A mailbox is created with a slot count and a slot size that never change.
// Its storage is one heap allocation of a fixed header plus slots*slotSize
// bytes. Post copies one message into the slot at the head index and never
// blocks; Wait copies the message at the tail index out, blocking on
// preemptive platforms until a message is posted or the mailbox is
// destroyed.
//
//	mb, err := mailbox.New(h, p, 3, 4)
//	_ = mb.Post([]byte{1, 0, 0, 0})
//	out := make([]byte, 4)
//	_ = mb.Wait(ctx, out)
//
// On preemptive platforms each mailbox owns a Mutex guarding the indices and
// a manual-reset Event that is set while messages are queued. On cooperative
// platforms Wait does not block and returns ErrEmpty instead.
//
// Destroy drains queued messages through an optional callback, wakes every
// blocked Wait with ErrClosed and returns the storage to the heap.
package mailbox
