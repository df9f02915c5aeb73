package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/pixil98/go-errors"
)

// Current asset envelope version written by every backend.
const assetVersion uint = 1

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)

type ValidatingSpec interface {
	Validate() error
}

// Asset is the envelope every record is stored in, regardless of backend.
type Asset[T ValidatingSpec] struct {
	Version    uint   `json:"version"`
	Identifier string `json:"id"`
	Spec       T      `json:"spec"`
}

func (a *Asset[T]) Id() string {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !identifierPattern.MatchString(a.Identifier) {
		el.Add(fmt.Errorf("id must be alphanumeric"))
	}

	if isNil(a.Spec) {
		el.Add(fmt.Errorf("spec must be set"))
	} else {
		el.Add(a.Spec.Validate())
	}

	return el.Err()
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ValidIdentifier reports whether id may be used as a storage key.
func ValidIdentifier(id string) bool {
	return id != "" && identifierPattern.MatchString(id)
}

func encodeAsset[T ValidatingSpec](id string, spec T) ([]byte, error) {
	if !ValidIdentifier(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	data, err := json.Marshal(&Asset[T]{
		Version:    assetVersion,
		Identifier: id,
		Spec:       spec,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling json: %w", err)
	}
	return data, nil
}

func decodeAsset[T ValidatingSpec](data []byte) (*Asset[T], error) {
	asset := &Asset[T]{}
	if err := json.Unmarshal(data, asset); err != nil {
		return nil, fmt.Errorf("unmarshalling asset: %w", err)
	}
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", asset.Identifier, err)
	}
	return asset, nil
}
