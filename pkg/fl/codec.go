package fl

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// Codec encodes tasks and results on the wire.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = newCBORCodec()
)

func CodecFor(contentType string) (Codec, error) {
	if contentType == "" {
		return JSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q", ErrUnknownStrategy, contentType)
	}

	switch mediaType {
	case ContentTypeJSON:
		return JSON, nil
	case ContentTypeCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("%w: content type %q", ErrUnknownStrategy, contentType)
	}
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(err)
	}

	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) ContentType() string { return ContentTypeCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

// LoadState reads a seed state encoded as a JSON object of named arrays,
// for example {"fibonacci_level": [10]}.
func LoadState(r io.Reader) (GlobalState, error) {
	var params map[string][]float64
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return GlobalState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	state := NewGlobalState(params)
	if err := state.Validate(); err != nil {
		return GlobalState{}, err
	}

	return state, nil
}

func (s GlobalState) Validate() error {
	for key, values := range s.Params {
		if key == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidState)
		}
		if !finite(values) {
			return fmt.Errorf("%w: key %q holds a non-finite value", ErrInvalidState, key)
		}
	}

	return nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
