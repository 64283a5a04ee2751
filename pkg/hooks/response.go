// Package hooks contains the small helpers shared by the hook binary that
// host tools invoke on prompt and response events. Everything here must be
// fast and must never block the host.
package hooks

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Response is the JSON a Claude Code hook prints to stdout. Continue false
// would halt the host's flow; observation hooks always continue.
type Response struct {
	Continue bool `json:"continue"`
}

// WriteResponse prints the hook response to stdout.
func WriteResponse(trigger string, ok bool) {
	data, _ := json.Marshal(Response{Continue: ok})
	fmt.Println(string(data))
}

// WriteError logs to stderr and still tells the host to continue. An
// observation failure is never the host's problem.
func WriteError(trigger string, err error) {
	fmt.Fprintf(os.Stderr, "[%s] %v\n", trigger, err)
	WriteResponse(trigger, true)
}
