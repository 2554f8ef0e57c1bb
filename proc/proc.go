// Package proc is the thread/process-context collaborator the vm
// package treats as external: it supplies a process identity, its
// address space, and the saved user stack pointer the fault handler
// needs to validate a stack-growth fault taken on a syscall trap frame
// rather than directly from user mode.
package proc

import (
	"sync/atomic"

	"vmkaist/defs"
	"vmkaist/frame"
	"vmkaist/swap"
	"vmkaist/vm"
)

/// Pid_t identifies a process.
type Pid_t int32

var nextPid int32

/// Proc_t is one process: its identity and its address space. The
/// scheduler, trap entry path, and syscall dispatch that would
/// populate SavedRsp on every entry are themselves out of scope; this
/// package only holds the field they'd write.
type Proc_t struct {
	Pid Pid_t
	AS  *vm.AddressSpace

	/// SavedRsp is the user stack pointer captured on syscall entry;
	/// the fault handler uses it in place of the trap frame's rsp when
	/// not faulting directly from user mode.
	SavedRsp uintptr
}

/// New allocates a process with a fresh, empty address space backed by
/// the given process-wide frame and swap tables.
func New(frames *frame.Table, swaps *swap.Table) *Proc_t {
	return &Proc_t{
		Pid: Pid_t(atomic.AddInt32(&nextPid, 1)),
		AS:  vm.New(frames, swaps),
	}
}

/// Fork creates a child process sharing no live state with the parent
/// except its pages, made copy-on-write via AddressSpace.Fork. The
/// parent must not be concurrently faulting while this runs.
func (p *Proc_t) Fork(frames *frame.Table, swaps *swap.Table) (*Proc_t, defs.Err_t) {
	child := New(frames, swaps)
	if err := p.AS.Fork(child.AS); err != 0 {
		return nil, err
	}
	return child, 0
}

/// Exit tears down the process's address space.
func (p *Proc_t) Exit() {
	p.AS.Exit()
}
