// Package exec runs external commands, such as package managers, on behalf of
// the CLI.
//
// An Executor streams output to configured writers, kills the child process
// when its context is cancelled, and points at the missing binary when a
// command cannot be found:
//
//	executor := exec.NewExecutor(&exec.Options{Dir: projectRoot})
//	err := executor.Run(ctx, "npm", "install", "jsonwebtoken")
//
// RunWithSpinner shows a spinner instead of the command output and replays
// the output only when the command fails.
package exec
