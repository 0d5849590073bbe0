package ui

import (
	"encoding/json"
	"io"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"gopkg.in/yaml.v3"
)

type encodeFunc func(w io.Writer, v interface{}) error

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// structured writes machine-readable documents.
type structured struct {
	w      io.Writer
	encode encodeFunc
}

func (s *structured) write(v interface{}) error {
	if err := s.encode(s.w, v); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "encode output")
	}
	return nil
}

func (s *structured) Components(list []components.Component) error {
	if list == nil {
		list = []components.Component{}
	}
	return s.write(list)
}

func (s *structured) Catalog(pkgs []manifest.DistPackage) error {
	if pkgs == nil {
		pkgs = []manifest.DistPackage{}
	}
	return s.write(pkgs)
}

func (s *structured) Record(rec *fingerprint.Record) error {
	return s.write(rec)
}

// resultDoc is a core.Result with errors flattened to strings.
type resultDoc struct {
	OperationID    string             `json:"operation_id" yaml:"operation_id"`
	Kind           core.OperationKind `json:"kind" yaml:"kind"`
	Succeeded      []string           `json:"succeeded" yaml:"succeeded"`
	Removed        []string           `json:"removed,omitempty" yaml:"removed,omitempty"`
	Failed         []failureDoc       `json:"failed,omitempty" yaml:"failed,omitempty"`
	ToolchainError string             `json:"toolchain_error,omitempty" yaml:"toolchain_error,omitempty"`
	Resumed        string             `json:"resumed,omitempty" yaml:"resumed,omitempty"`
}

type failureDoc struct {
	Name    string `json:"name" yaml:"name"`
	Error   string `json:"error" yaml:"error"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func (s *structured) Result(res *core.Result) error {
	doc := resultDoc{
		OperationID: res.OperationID,
		Kind:        res.Kind,
		Succeeded:   append([]string{}, res.Succeeded...),
		Removed:     res.Removed,
		Resumed:     res.Resumed,
	}
	for _, f := range res.Failed {
		fd := failureDoc{Name: f.Name, Skipped: f.Skipped}
		if f.Err != nil {
			fd.Error = f.Err.Error()
		}
		doc.Failed = append(doc.Failed, fd)
	}
	if res.ToolchainErr != nil {
		doc.ToolchainError = res.ToolchainErr.Error()
	}
	return s.write(doc)
}

func (s *structured) Message(msg string) error {
	return s.write(map[string]string{"message": msg})
}
