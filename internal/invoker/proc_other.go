//go:build !unix

package invoker

import "os/exec"

func configureCommand(cmd *exec.Cmd) {}

func killGroup(cmd *exec.Cmd) {}
