package story

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrParamsFile is returned when a params file cannot be read or parsed.
var ErrParamsFile = errors.New("story: bad params file")

// DecodeParams reads YAML params from r. Keys left out take the
// DefaultParams values; unknown keys are rejected.
func DecodeParams(r io.Reader) (Params, error) {
	p := DefaultParams("")
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Params{}, fmt.Errorf("%w: document is empty", ErrParamsFile)
		}
		return Params{}, fmt.Errorf("%w: %v", ErrParamsFile, err)
	}
	return p, nil
}

// LoadParamsFile reads YAML params from path.
func LoadParamsFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrParamsFile, err)
	}
	return DecodeParams(bytes.NewReader(data))
}

// EncodeParams writes p as YAML.
func EncodeParams(w io.Writer, p Params) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
