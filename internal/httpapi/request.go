package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// weaveRequest is the body of POST /api/weave.
type weaveRequest struct {
	Tool           string          `json:"tool"`
	SourceCode     string          `json:"sourceCode"`
	SourceFilename string          `json:"sourceFilename"`
	Script         string          `json:"script"`
	Flags          json.RawMessage `json:"flags"`
}

const defaultMaxMemory = 32 << 20

var errBadFlags = errors.New(`flags must be a JSON array of strings`)

// decodeRequest accepts JSON, multipart and urlencoded bodies.
func decodeRequest(r *http.Request, maxMemory int64) (weaveRequest, []string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	var req weaveRequest
	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			return req, nil, fmt.Errorf("decoding json body: %w", err)
		}
	case "multipart/form-data":
		if maxMemory <= 0 {
			maxMemory = defaultMaxMemory
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return req, nil, fmt.Errorf("parsing multipart body: %w", err)
		}
		req = formRequest(r)
	default:
		if err := r.ParseForm(); err != nil {
			return req, nil, fmt.Errorf("parsing form body: %w", err)
		}
		req = formRequest(r)
	}

	flags, err := parseFlags(req.Flags)
	if err != nil {
		return req, nil, err
	}
	return req, flags, nil
}

func formRequest(r *http.Request) weaveRequest {
	req := weaveRequest{
		Tool:           r.PostFormValue("tool"),
		SourceCode:     r.PostFormValue("sourceCode"),
		SourceFilename: r.PostFormValue("sourceFilename"),
		Script:         r.PostFormValue("script"),
	}
	if flags := r.PostFormValue("flags"); flags != "" {
		req.Flags = json.RawMessage(flags)
	}
	return req
}

// parseFlags accepts ["-std","c++11"] as well as the same array encoded
// into a JSON string, which is what form clients send. Absent means none.
func parseFlags(raw json.RawMessage) ([]string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return []string{}, nil
	}
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, errBadFlags
		}
		return parseFlags(json.RawMessage(inner))
	}
	var flags []string
	if err := json.Unmarshal([]byte(s), &flags); err != nil {
		return nil, errBadFlags
	}
	if flags == nil {
		flags = []string{}
	}
	return flags, nil
}
