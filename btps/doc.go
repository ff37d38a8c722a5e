// Package btps is the kernel layer the Bluetooth stack runs on. A Kernel
// bundles the services a port must provide: a heap, the debug console, the
// periodic scheduler, mailboxes and the thread primitives of an
// osal.Platform.
//
// # Platforms
//
// The platform passed in Config decides how the kernel behaves:
//
//   - osal.NoOS: one thread of control. The console writes directly, the
//     heap defaults to heap.DefaultCooperativeSize, mailbox Wait never
//     blocks, and the caller drives the scheduler.
//   - osal.RTOS: real threads. The console is buffered and a background
//     idle thread drains it, and the heap defaults to heap.DefaultSize.
//
// Every heap operation takes the kernel's heap mutex on both platforms.
//
// # Lifecycle
//
//	k, err := btps.New(btps.Config{Platform: osal.RTOS(osal.NewSystemClock())})
//	if err != nil {
//	    return err
//	}
//	defer k.Close()
//
//	mb, err := k.CreateMailbox(8, 32)
//
// Close stops the idle thread, flushes buffered console output and reports
// leaked heap allocations to the log.
package btps
