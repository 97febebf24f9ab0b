package launcher

import "syscall"

// sysProcAttr kills launched processes together with this one
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
