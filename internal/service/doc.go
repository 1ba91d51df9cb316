// Package service runs the external weaving tool as a child process.
//
// Run is a thin, opinionated wrapper around os/exec:
//   - starts the process and blocks until it terminates
//   - captures stdout and stderr in full
//   - optionally forwards stderr line by line (extra goroutine)
//   - kills the whole process group once the timeout expires
//
// Classify turns a Result into an outcome. The rules are evaluated in this
// order and the first match wins:
//
//	launch   the process could not be started (State is nil)
//	timeout  the deadline expired and the process group was killed
//	exit     the process exited with a non zero code
//	stderr   exit code 0, but stderr contains "error" (case insensitive)
//
// The stderr rule is a heuristic. It catches tools which print internal
// errors and still exit with 0, but it also fires on harmless messages
// mentioning the word.
//
// Invariants:
//   - Each Run produces exactly one Result.
//   - Run returns only after all stderr lines were delivered to StderrFunc.
//   - A zero Timeout means the command may run forever.
package service
