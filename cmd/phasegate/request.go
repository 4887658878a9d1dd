package main

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/phasegate/internal/engine"
)

// newRequest builds an engine request from CLI arguments.
func newRequest(kind string, args map[string]any) (engine.Request, error) {
	req := engine.Request{ToolKind: kind}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return req, fmt.Errorf("encode %s arguments: %w", kind, err)
		}
		req.ToolArguments = data
	}
	return req, nil
}
