package jsonio

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/taksan/jaql"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Reader decodes a stream of JSON values, such as NDJSON, into jaql values.
// Object fields are ordered by name since JSON objects carry no field order.
type Reader struct {
	decoder *json.Decoder
}

func NewReader(r io.Reader) *Reader {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	return &Reader{decoder: decoder}
}

func (r *Reader) Read() (*jaql.Value, error) {
	var v interface{}
	if err := r.decoder.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return FromGo(v)
}

// FromGo converts the result of decoding JSON into an interface{} (with
// UseNumber enabled) into a jaql value.
func FromGo(v interface{}) (*jaql.Value, error) {
	var val jaql.Value
	if err := fromGo(&val, v); err != nil {
		return nil, err
	}
	return &val, nil
}

func fromGo(val *jaql.Value, v interface{}) error {
	switch v := v.(type) {
	case nil:
		val.Reset(jaql.KindNull)
	case bool:
		val.SetBool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			val.SetInt(i)
			return nil
		}
		f, err := v.Float64()
		if err != nil {
			return err
		}
		val.SetFloat(f)
	case float64:
		val.SetFloat(v)
	case string:
		copy(val.Buffer(jaql.KindString, len(v)), v)
	case []interface{}:
		elems := val.GrowElements(len(v))
		for k := range v {
			if err := fromGo(&elems[k], v[k]); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		names := maps.Keys(v)
		slices.Sort(names)
		fields := val.GrowFields(len(names))
		for k, name := range names {
			fields[k].Name = name
			if err := fromGo(&fields[k].Value, v[name]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("jsonio: unsupported JSON value of type %T", v)
	}
	return nil
}
