package commands

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// ExitCode maps a run result to the process exit status. Validation errors,
// failed setups (already rolled back) and interrupts all exit with
// ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return ExitFailure
}
