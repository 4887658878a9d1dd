package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/engine"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle one JSON request from stdin",
	Long: `Read one request document from stdin, handle it, and write one
response document to stdout.

Request:  {"toolKind": "Edit", "toolArguments": {...}, "sessionId": "..."}
Response: {"continue": true, "message": "...", "stopReason": "..."}

The command always exits 0 and always writes a response, even when the
request is malformed or the project cannot be opened.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runHook(cmd.Context(), projectDir, cmd.InOrStdin(), cmd.OutOrStdout()))
	},
}

// handlerFunc opens the engine for a project.
type handlerFunc func(dir string) (handler, func(), error)

type handler interface {
	Handle(ctx context.Context, req engine.Request) engine.Response
}

func openHandler(dir string) (handler, func(), error) {
	a, err := openApp(dir)
	if err != nil {
		return nil, nil, err
	}
	return a.engine, func() { a.Close() }, nil
}

func runHook(ctx context.Context, dir string, in io.Reader, out io.Writer) int {
	return hookWith(ctx, dir, in, out, openHandler)
}

// hookWith is runHook with a replaceable engine factory.
func hookWith(ctx context.Context, dir string, in io.Reader, out io.Writer, open handlerFunc) (code int) {
	resp := engine.Response{Continue: true}
	defer func() {
		if r := recover(); r != nil {
			resp = engine.Response{Continue: true, Message: fmt.Sprintf("phasegate internal error: %v", r)}
		}
		writeResponse(out, resp)
		code = 0
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	data, err := io.ReadAll(in)
	if err != nil {
		resp.Message = "phasegate: read request: " + err.Error()
		return 0
	}
	req, err := engine.ParseRequest(data)
	if err != nil {
		resp.Message = "phasegate: " + err.Error()
		return 0
	}

	h, closeFn, err := open(dir)
	if err != nil {
		resp.Message = "phasegate: " + err.Error()
		return 0
	}
	defer closeFn()

	resp = h.Handle(ctx, req)
	return 0
}

func writeResponse(out io.Writer, resp engine.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"continue":true}`)
	}
	fmt.Fprintln(out, string(data))
}
