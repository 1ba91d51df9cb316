package model

import (
	"strings"
)

// DefaultSourceFilename is used on disk when a request carries no file name.
const DefaultSourceFilename = "input"

// JobRequest is a single transformation request. It is owned by the caller
// until handed to the engine and never shared between jobs.
type JobRequest struct {
	Tool           string
	SourceCode     string
	SourceFilename string // may be empty
	ScriptCode     string
	Args           []string // passed verbatim after the fixed arguments
	SessionDir     string   // unique per job
}

// Validate checks the required fields in the order tool, sourceCode,
// scriptCode, then the shape of sourceFilename and the session directory.
func (r JobRequest) Validate() error {
	switch {
	case r.Tool == "":
		return &ValidationError{Field: "tool"}
	case r.SourceCode == "":
		return &ValidationError{Field: "sourceCode"}
	case r.ScriptCode == "":
		return &ValidationError{Field: "scriptCode"}
	}
	if err := validFilename(r.SourceFilename); err != nil {
		return err
	}
	if r.SessionDir == "" {
		return &ValidationError{Field: "sessionDir"}
	}
	return nil
}

// InputFilename is the name the source is written under inside the session.
func (r JobRequest) InputFilename() string {
	if r.SourceFilename == "" {
		return DefaultSourceFilename
	}
	return r.SourceFilename
}

func validFilename(name string) error {
	if name == "" {
		return nil
	}
	if name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return &ValidationError{Field: "sourceFilename", Reason: "must be a plain file name"}
	}
	if strings.ContainsRune(name, 0) {
		return &ValidationError{Field: "sourceFilename", Reason: "contains NUL byte"}
	}
	return nil
}

// JobResult is produced exactly once per job. FileNames and Outputs are
// index aligned; MainFileIndex is -1 only when there are no outputs.
type JobResult struct {
	FileNames         []string `json:"fileNames"`
	Outputs           []string `json:"outputs"`
	MainFileIndex     int      `json:"mainFile"`
	ConsoleLog        string   `json:"console"`
	ExceptionOccurred bool     `json:"exceptionOccured"`
}

// FailedResult is the result of a job which produced no usable output.
func FailedResult(console string) JobResult {
	return JobResult{
		FileNames:         []string{},
		Outputs:           []string{},
		MainFileIndex:     -1,
		ConsoleLog:        console,
		ExceptionOccurred: true,
	}
}
