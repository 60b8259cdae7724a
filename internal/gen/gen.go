// Package gen produces the mechanical forwarding stub source for a slot
// manifest. The stubs are fixed at build time; the core engine only ever
// sees the declared slot list, so supporting a new target library is a
// matter of regenerating this file with enough slot coverage.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"strings"
	"text/template"

	"github.com/techiew/UltimateProxyDLL/internal/slot"
)

// DefaultPackage is the package name of the emitted file. Stubs must live
// in package main to be exported from a c-shared build.
const DefaultPackage = "main"

const stubTemplate = `// Code generated by updgen. DO NOT EDIT.
//
// Forwarding stubs impersonating {{ .Library }}. Each stub waits on the
// proxy gate and forwards to the real export with its arguments untouched.

package {{ .Package }}

import (
	upd "github.com/techiew/UltimateProxyDLL"
)

import "C"

func init() {
	upd.DeclareSlots([]upd.Slot{
{{- range .Slots }}
		{Name: {{ printf "%q" .Name }}, Ordinal: {{ .Ordinal }}, Arity: {{ arity . }}, Default: {{ .Default }}},
{{- end }}
	})
}
{{ range $i, $s := .Slots }}
//export {{ exportName $s }}
func {{ exportName $s }}({{ params $s }}) uintptr {
	return upd.Call({{ $i }}{{ args $s }})
}
{{ end -}}
`

// Generator renders stub source from a validated manifest.
type Generator struct {
	Manifest *slot.Manifest
	Package  string // defaults to DefaultPackage
}

// ExportName returns the linker-visible name of a slot's stub. ELF exports
// carry no ordinals, so ordinal-only slots get a synthesized name; they
// stay reachable through the manifest's ordinal mapping on the resolve
// side, but the proxy itself always exports by name.
func ExportName(s slot.Slot) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("UpdOrdinal%d", s.Ordinal)
}

// Source renders and gofmt-formats the stub file.
func (g *Generator) Source() ([]byte, error) {
	if err := g.Manifest.Validate(); err != nil {
		return nil, err
	}
	pkg := g.Package
	if pkg == "" {
		pkg = DefaultPackage
	}

	funcs := template.FuncMap{
		"exportName": ExportName,
		"arity": func(s slot.Slot) int {
			if s.Arity == 0 {
				return slot.DefaultArity
			}
			return s.Arity
		},
		"params": func(s slot.Slot) string {
			n := s.Arity
			if n == 0 {
				n = slot.DefaultArity
			}
			if n == 0 {
				return ""
			}
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("a%d", i)
			}
			return strings.Join(names, ", ") + " uintptr"
		},
		"args": func(s slot.Slot) string {
			n := s.Arity
			if n == 0 {
				n = slot.DefaultArity
			}
			var b strings.Builder
			for i := 0; i < n; i++ {
				fmt.Fprintf(&b, ", a%d", i)
			}
			return b.String()
		},
	}

	tmpl, err := template.New("stubs").Funcs(funcs).Parse(stubTemplate)
	if err != nil {
		return nil, fmt.Errorf("stub template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Library string
		Package string
		Slots   []slot.Slot
	}{g.Manifest.Library, pkg, g.Manifest.Slots})
	if err != nil {
		return nil, fmt.Errorf("render stubs: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		// Unformatted output is still useful for debugging the
		// template; surface both.
		return buf.Bytes(), fmt.Errorf("format stubs: %w", err)
	}
	return src, nil
}

// WriteFile renders the stubs to a file.
func (g *Generator) WriteFile(path string) error {
	src, err := g.Source()
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}
