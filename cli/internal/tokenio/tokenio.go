// Package tokenio encodes and decodes token streams so a template host in
// another process can hand its lexed documents to the compressor and read
// the rewritten stream back. YAML is for people and fixtures; MessagePack
// is for hosts.
package tokenio

import (
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/stream"
)

// Format names a wire format.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts yaml, yml and msgpack (any case).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return "", erruser.Codedf(erruser.CodeCodec, nil, "Unknown token stream format %q; use yaml or msgpack.", s)
}

type wireToken struct {
	Kind  string `yaml:"kind" msgpack:"k"`
	Value string `yaml:"value,omitempty" msgpack:"v,omitempty"`
	Raw   string `yaml:"raw,omitempty" msgpack:"r,omitempty"`
	Line  int    `yaml:"line,omitempty" msgpack:"l,omitempty"`
}

type wireDoc struct {
	Name   string      `yaml:"name,omitempty" msgpack:"name,omitempty"`
	Tokens []wireToken `yaml:"tokens" msgpack:"tokens"`
}

func toWire(d stream.Document) wireDoc {
	w := wireDoc{Name: d.Name, Tokens: make([]wireToken, 0, len(d.Tokens))}
	for _, t := range d.Tokens {
		w.Tokens = append(w.Tokens, wireToken{Kind: t.Kind.String(), Value: t.Value, Raw: t.Raw, Line: t.Line})
	}
	return w
}

func fromWire(w wireDoc) (stream.Document, error) {
	d := stream.Document{Name: w.Name, Tokens: make([]stream.Token, 0, len(w.Tokens))}
	for i, t := range w.Tokens {
		k, ok := stream.ParseKind(t.Kind)
		if !ok {
			return stream.Document{}, erruser.Codedf(erruser.CodeCodec, nil, "Token %d has unknown kind %q.", i, t.Kind)
		}
		d.Tokens = append(d.Tokens, stream.Token{Kind: k, Value: t.Value, Raw: t.Raw, Line: t.Line})
	}
	return d, nil
}

// Encode writes d to w in format f.
func Encode(w io.Writer, d stream.Document, f Format) error {
	wd := toWire(d)
	var err error
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(wd); err == nil {
			err = enc.Close()
		}
	case FormatMsgpack:
		err = msgpack.NewEncoder(w).Encode(wd)
	default:
		_, err = ParseFormat(string(f))
		return err
	}
	if err != nil {
		return erruser.Coded(erruser.CodeCodec, "Could not encode token stream.", err)
	}
	return nil
}

// Decode reads one document in format f from r.
func Decode(r io.Reader, f Format) (stream.Document, error) {
	var wd wireDoc
	var err error
	switch f {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&wd)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&wd)
	default:
		_, err = ParseFormat(string(f))
		return stream.Document{}, err
	}
	if err != nil {
		return stream.Document{}, erruser.Coded(erruser.CodeCodec, "Could not decode token stream.", err)
	}
	return fromWire(wd)
}
