package tfrecord

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// tf.train.Example field numbers. The Example message holds a Features
// message at field 1, which holds a map<string, Feature> at field 1. A
// Feature is a oneof over BytesList (1), FloatList (2) and Int64List (3),
// each with a repeated value at field 1.
const (
	fieldFeatures     = 1
	fieldFeatureEntry = 1
	fieldEntryKey     = 1
	fieldEntryValue   = 2
	fieldBytesList    = 1
	fieldFloatList    = 2
	fieldInt64List    = 3
	fieldListValue    = 1
)

// Feature is one named value list in a tf.train.Example. Exactly one of the
// slices is populated.
type Feature struct {
	Floats []float32
	Ints   []int64
	Bytes  [][]byte
}

// Example is a decoded tf.train.Example: named features keyed by name.
type Example map[string]Feature

// Keys returns the feature names in sorted order.
func (e Example) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseExample decodes a serialized tf.train.Example.
func ParseExample(data []byte) (Example, error) {
	example := make(Example)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("parse example tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldFeatures || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("skip example field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		features, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("parse features: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if err := parseFeatures(features, example); err != nil {
			return nil, err
		}
	}

	return example, nil
}

func parseFeatures(data []byte, example Example) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("parse features tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldFeatureEntry || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("skip features field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		entry, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("parse feature entry: %w", protowire.ParseError(n))
		}
		data = data[n:]

		key, feature, err := parseEntry(entry)
		if err != nil {
			return err
		}
		example[key] = feature
	}
	return nil
}

func parseEntry(data []byte) (string, Feature, error) {
	var key string
	var feature Feature

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", feature, fmt.Errorf("parse entry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldEntryKey && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", feature, fmt.Errorf("parse feature name: %w", protowire.ParseError(n))
			}
			key = s
			data = data[n:]

		case num == fieldEntryValue && typ == protowire.BytesType:
			value, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", feature, fmt.Errorf("parse feature value: %w", protowire.ParseError(n))
			}
			data = data[n:]

			f, err := parseFeature(value)
			if err != nil {
				return "", feature, fmt.Errorf("feature %q: %w", key, err)
			}
			feature = f

		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", feature, fmt.Errorf("skip entry field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if key == "" {
		return "", feature, fmt.Errorf("feature entry without a name")
	}
	return key, feature, nil
}

func parseFeature(data []byte) (Feature, error) {
	var feature Feature

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return feature, fmt.Errorf("parse kind tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return feature, fmt.Errorf("skip kind field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		list, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return feature, fmt.Errorf("parse value list: %w", protowire.ParseError(n))
		}
		data = data[n:]

		var err error
		switch num {
		case fieldBytesList:
			feature.Bytes, err = parseBytesList(list)
		case fieldFloatList:
			feature.Floats, err = parseFloatList(list)
		case fieldInt64List:
			feature.Ints, err = parseInt64List(list)
		}
		if err != nil {
			return feature, err
		}
	}

	return feature, nil
}

// parseFloatList handles both packed and unpacked encodings of
// repeated float value = 1.
func parseFloatList(data []byte) ([]float32, error) {
	var out []float32
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("parse float list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldListValue {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}

		switch typ {
		case protowire.BytesType: // packed
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			if len(packed)%4 != 0 {
				return nil, fmt.Errorf("packed float list has %d bytes", len(packed))
			}
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return nil, protowire.ParseError(n)
				}
				out = append(out, math.Float32frombits(v))
				packed = packed[n:]
			}
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			out = append(out, math.Float32frombits(v))
			data = data[n:]
		default:
			return nil, fmt.Errorf("unexpected float list wire type %d", typ)
		}
	}
	return out, nil
}

func parseInt64List(data []byte) ([]int64, error) {
	var out []int64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("parse int64 list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldListValue {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}

		switch typ {
		case protowire.BytesType: // packed
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return nil, protowire.ParseError(n)
				}
				out = append(out, int64(v))
				packed = packed[n:]
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			out = append(out, int64(v))
			data = data[n:]
		default:
			return nil, fmt.Errorf("unexpected int64 list wire type %d", typ)
		}
	}
	return out, nil
}

func parseBytesList(data []byte) ([][]byte, error) {
	var out [][]byte
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("parse bytes list tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldListValue || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, append([]byte(nil), b...))
		data = data[n:]
	}
	return out, nil
}

// Marshal encodes the example as a serialized tf.train.Example. Features are
// written in sorted name order so output is deterministic.
func (e Example) Marshal() []byte {
	var features []byte
	for _, key := range e.Keys() {
		entry := protowire.AppendTag(nil, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalFeature(e[key]))

		features = protowire.AppendTag(features, fieldFeatureEntry, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	out := protowire.AppendTag(nil, fieldFeatures, protowire.BytesType)
	return protowire.AppendBytes(out, features)
}

func marshalFeature(f Feature) []byte {
	switch {
	case f.Floats != nil:
		var packed []byte
		for _, v := range f.Floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		list := protowire.AppendTag(nil, fieldListValue, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
		out := protowire.AppendTag(nil, fieldFloatList, protowire.BytesType)
		return protowire.AppendBytes(out, list)

	case f.Ints != nil:
		var packed []byte
		for _, v := range f.Ints {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		list := protowire.AppendTag(nil, fieldListValue, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
		out := protowire.AppendTag(nil, fieldInt64List, protowire.BytesType)
		return protowire.AppendBytes(out, list)

	default:
		var list []byte
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
		out := protowire.AppendTag(nil, fieldBytesList, protowire.BytesType)
		return protowire.AppendBytes(out, list)
	}
}
