package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
)

const (
	codecFormatVersionCurrent = 1

	maxValueDepth = 32
)

const (
	tagNil byte = iota
	tagFalse
	tagTrue
	tagInt
	tagUint
	tagFloat
	tagString
	tagBytes
	tagList
	tagMap
)

// Encode serializes a field value into the session wire format.
//
// Storable values are nil, bool, every integer and float kind, string, []byte,
// and slices, arrays, or string-keyed maps built from those. Anything else
// (funcs, channels, structs, pointers) fails with ErrUnsupportedValueType.
func Encode(v any) ([]byte, error) {
	norm, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return encodeNormalized(norm)
}

func encodeNormalized(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(codecFormatVersionCurrent)
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode. Integers come back as int64 or
// uint64, floats as float64, sequences as []any and mappings as map[string]any.
func Decode(data []byte) (any, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty payload", ErrDecodeFailure)
	}
	if version != codecFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported codec version %d", ErrDecodeFailure, version)
	}

	v, err := decodeValue(reader, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecodeFailure, reader.Len())
	}

	return v, nil
}

// Normalize converts v into the canonical form Decode would return for it.
// The result never aliases v.
func Normalize(v any) (any, error) {
	return normalize(v, 0)
}

func normalize(v any, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedValueType, maxValueDepth)
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, uint64, float64:
		return t, nil
	case []byte:
		return bytes.Clone(t), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return out, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := normalize(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedValueType, rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := normalize(iter.Value().Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}
}

func encodeValue(buf *bytes.Buffer, v any) error {
	var scratch [8]byte

	switch t := v.(type) {
	case nil:
		buf.WriteByte(tagNil)
	case bool:
		if t {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case int64:
		buf.WriteByte(tagInt)
		binary.BigEndian.PutUint64(scratch[:], uint64(t))
		buf.Write(scratch[:])
	case uint64:
		buf.WriteByte(tagUint)
		binary.BigEndian.PutUint64(scratch[:], t)
		buf.Write(scratch[:])
	case float64:
		buf.WriteByte(tagFloat)
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(t))
		buf.Write(scratch[:])
	case string:
		buf.WriteByte(tagString)
		writeLen(buf, len(t))
		buf.WriteString(t)
	case []byte:
		buf.WriteByte(tagBytes)
		writeLen(buf, len(t))
		buf.Write(t)
	case []any:
		buf.WriteByte(tagList)
		writeLen(buf, len(t))
		for _, elem := range t {
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
	case map[string]any:
		buf.WriteByte(tagMap)
		writeLen(buf, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			writeLen(buf, len(k))
			buf.WriteString(k)
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}

	return nil
}

func writeLen(buf *bytes.Buffer, n int) {
	buf.Write(binary.AppendUvarint(nil, uint64(n)))
}

var errTruncated = errors.New("truncated payload")

func readLen(reader *bytes.Reader) (int, error) {
	n, err := binary.ReadUvarint(reader)
	if err != nil {
		return 0, errTruncated
	}
	// every element or byte needs at least one byte of input
	if n > uint64(reader.Len()) {
		return 0, errTruncated
	}
	return int(n), nil
}

func readFixed(reader *bytes.Reader) (uint64, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(reader, scratch[:]); err != nil {
		return 0, errTruncated
	}
	return binary.BigEndian.Uint64(scratch[:]), nil
}

func readString(reader *bytes.Reader) (string, error) {
	n, err := readLen(reader)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", errTruncated
	}
	return string(b), nil
}

func decodeValue(reader *bytes.Reader, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, errors.New("nesting too deep")
	}

	tag, err := reader.ReadByte()
	if err != nil {
		return nil, errTruncated
	}

	switch tag {
	case tagNil:
		return nil, nil
	case tagFalse:
		return false, nil
	case tagTrue:
		return true, nil
	case tagInt:
		u, err := readFixed(reader)
		if err != nil {
			return nil, err
		}
		return int64(u), nil
	case tagUint:
		return readFixed(reader)
	case tagFloat:
		u, err := readFixed(reader)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(u), nil
	case tagString:
		return readString(reader)
	case tagBytes:
		n, err := readLen(reader)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return nil, errTruncated
		}
		return b, nil
	case tagList:
		n, err := readLen(reader)
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			elem, err := decodeValue(reader, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case tagMap:
		n, err := readLen(reader)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, err := readString(reader)
			if err != nil {
				return nil, err
			}
			elem, err := decodeValue(reader, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value tag %d", tag)
	}
}
