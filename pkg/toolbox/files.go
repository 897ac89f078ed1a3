package toolbox

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"ooda/pkg/tools"
)

var errEmptyCode = errors.New("argument 'code' is required")

// ListFiles lists the entries of a directory.
type ListFiles struct{}

var _ tools.Tool = (*ListFiles)(nil)

func (ListFiles) Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:      "ListFiles",
		Purpose:   "A tool to list the entries of a directory on the local filesystem.",
		UsageHint: "Use this to discover which files exist before reading them.",
		InputFormat: []tools.Field{
			{Key: "path", Description: "The directory path to list, e.g. \"/data\"."},
		},
		OutputFormat: []tools.Field{
			{Key: "entries", Description: "The entry names; directories carry a trailing '/'."},
		},
	}
}

type listFilesInput struct {
	Path string `yaml:"path"`
}

func (ListFiles) Invoke(_ context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[listFilesInput]("ListFiles", input)
	if err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, &tools.InvalidInputError{Tool: "ListFiles", Reason: errors.New("argument 'path' is required")}
	}

	slog.Info("listing files", "path", in.Path)
	dirEntries, err := os.ReadDir(in.Path)
	if err != nil {
		return nil, &tools.InvocationError{Tool: "ListFiles", Reason: err}
	}

	entries := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		}
		entries = append(entries, e.Name()+suffix)
	}
	return map[string]any{"entries": entries}, nil
}

// ReadFile returns the contents of a file.
type ReadFile struct{}

var _ tools.Tool = (*ReadFile)(nil)

func (ReadFile) Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:      "ReadFile",
		Purpose:   "A tool to read the contents of a file on the local filesystem.",
		UsageHint: "Use this to inspect a file found with ListFiles.",
		InputFormat: []tools.Field{
			{Key: "path", Description: "The file path to read."},
		},
		OutputFormat: []tools.Field{
			{Key: "content", Description: "The file contents as text."},
		},
	}
}

type readFileInput struct {
	Path string `yaml:"path"`
}

func (ReadFile) Invoke(_ context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[readFileInput]("ReadFile", input)
	if err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, &tools.InvalidInputError{Tool: "ReadFile", Reason: errors.New("argument 'path' is required")}
	}

	slog.Info("reading file", "path", in.Path)
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, &tools.InvocationError{Tool: "ReadFile", Reason: err}
	}
	return map[string]any{"content": string(data)}, nil
}
