// Package progress renders live, multi-row progress for long running work.
//
// A single broker goroutine owns every row. Producers never touch a row
// directly: they hold a [Handle] that turns each call into a [Message] sent to
// the broker. Because the broker is the only writer, no locks guard task
// state, and because ids are allocated in the same order messages reach the
// broker, a task's id is always its index in the broker's list.
//
// # Usage
//
//	reg := progress.New(progress.Options{Output: os.Stderr})
//	defer reg.Close()
//
//	t, err := reg.NewTask("llvm-16.0.1.src.tar.xz")
//	if err != nil {
//	    return err
//	}
//	t.SetSubtask("downloading")
//	t.SetPercentage(0.42)
//	t.Finish()
//
// # Mailbox
//
// Updates travel through an unbounded FIFO: an unbuffered inbound channel is
// drained by a pump goroutine into a slice that feeds the broker. Producers
// (download chunk loops, decoder read loops) therefore never wait on the
// terminal. The cost is memory: if rendering stalls, queued messages grow
// without limit. Runs are a handful of finite transfers, so this is accepted.
//
// # Rendering
//
// NewTask, SetSubtask and Finish repaint every row so the "[i/N]" prefixes
// stay correct as rows are added. SetPercentage only records the value; a
// periodic tick repaints the block when something changed. Closing the
// registry stops the broker and leaves the last frame on screen.
//
// # Output Format
//
//	[1/3] ⠂ llvm-16.0.1.src.tar.xz - downloading   ██████████░░░░░░░░░░ 12s
//	[2/3] ⠁ Compilation                            ░░░░░░░░░░░░░░░░░░░░
//	[3/3] ⠁ Env Vars                               ░░░░░░░░░░░░░░░░░░░░
package progress
