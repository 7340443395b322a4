// Package serializer implements picoNet's tagged binary payload
// format, per SPEC_FULL.md §6 ("Payload serialization"). The reader
// and writer are a length-prefixed, tagged binary form modeled on the
// teacher's BitStream helper (source/protocol/raknet.go): a small byte
// buffer with a read/write cursor, rather than encoding/gob or a
// generic reflection-based codec.
package serializer

import (
	"encoding/binary"
	"fmt"
	"math"

	"roguevault/internal/netcode/codebook"
)

const (
	tagNull    = 0x00
	tagFalse   = 0x01
	tagTrue    = 0x02
	tagInt32   = 0x03
	tagFloat64 = 0x04
	tagUTF8    = 0x05
	tagList    = 0x06
	tagDict    = 0x07
	tagKeyKnown   = 0x08
	tagKeyUnknown = 0x09
)

// Writer accumulates an encoded payload.
type Writer struct {
	buf []byte
	cb  *codebook.Codebook
}

// NewWriter returns an empty Writer bound to cb for dict-key encoding.
func NewWriter(cb *codebook.Codebook) *Writer {
	return &Writer{cb: cb}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) writeByte(b byte)     { w.buf = append(w.buf, b) }
func (w *Writer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) writeInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) writeUTF8(s string) {
	w.writeUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteValue encodes a value of type nil, bool, int32, float64,
// string, []interface{}, or map[string]interface{}.
func (w *Writer) WriteValue(v interface{}) error {
	switch val := v.(type) {
	case nil:
		w.writeByte(tagNull)
	case bool:
		if val {
			w.writeByte(tagTrue)
		} else {
			w.writeByte(tagFalse)
		}
	case int32:
		w.writeByte(tagInt32)
		w.writeInt32(val)
	case int:
		w.writeByte(tagInt32)
		w.writeInt32(int32(val))
	case float64:
		w.writeByte(tagFloat64)
		w.writeFloat64(val)
	case string:
		w.writeByte(tagUTF8)
		w.writeUTF8(val)
	case []interface{}:
		w.writeByte(tagList)
		w.writeUint16(uint16(len(val)))
		for _, item := range val {
			if err := w.WriteValue(item); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		w.writeByte(tagDict)
		w.writeUint16(uint16(len(val)))
		for key, item := range val {
			w.writeKey(key)
			if err := w.WriteValue(item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("serializer: unsupported value type %T", v)
	}
	return nil
}

func (w *Writer) writeKey(key string) {
	if w.cb != nil {
		if id, ok := w.cb.ID(key); ok {
			w.writeByte(tagKeyKnown)
			w.writeByte(id)
			return
		}
	}
	w.writeByte(tagKeyUnknown)
	w.writeUTF8(key)
}

// Reader decodes an encoded payload.
type Reader struct {
	buf    []byte
	offset int
	cb     *codebook.Codebook
}

// NewReader wraps buf for decoding, bound to cb for dict-key decoding.
func NewReader(buf []byte, cb *codebook.Codebook) *Reader {
	return &Reader{buf: buf, cb: cb}
}

// Remaining reports how many undecoded bytes remain.
func (r *Reader) Remaining() int { return len(r.buf) - r.offset }

func (r *Reader) readByte() (byte, error) {
	if r.offset >= len(r.buf) {
		return 0, fmt.Errorf("serializer: unexpected end of buffer")
	}
	b := r.buf[r.offset]
	r.offset++
	return b, nil
}

func (r *Reader) readUint16() (uint16, error) {
	if r.offset+2 > len(r.buf) {
		return 0, fmt.Errorf("serializer: unexpected end of buffer")
	}
	v := binary.BigEndian.Uint16(r.buf[r.offset : r.offset+2])
	r.offset += 2
	return v, nil
}

func (r *Reader) readInt32() (int32, error) {
	if r.offset+4 > len(r.buf) {
		return 0, fmt.Errorf("serializer: unexpected end of buffer")
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.offset : r.offset+4]))
	r.offset += 4
	return v, nil
}

func (r *Reader) readFloat64() (float64, error) {
	if r.offset+8 > len(r.buf) {
		return 0, fmt.Errorf("serializer: unexpected end of buffer")
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.offset : r.offset+8]))
	r.offset += 8
	return v, nil
}

func (r *Reader) readUTF8() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	if r.offset+int(n) > len(r.buf) {
		return "", fmt.Errorf("serializer: unexpected end of buffer")
	}
	s := string(r.buf[r.offset : r.offset+int(n)])
	r.offset += int(n)
	return s, nil
}

// ReadValue decodes the next tagged value.
func (r *Reader) ReadValue() (interface{}, error) {
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return nil, nil
	case tagFalse:
		return false, nil
	case tagTrue:
		return true, nil
	case tagInt32:
		return r.readInt32()
	case tagFloat64:
		return r.readFloat64()
	case tagUTF8:
		return r.readUTF8()
	case tagList:
		n, err := r.readUint16()
		if err != nil {
			return nil, err
		}
		list := make([]interface{}, 0, n)
		for i := 0; i < int(n); i++ {
			v, err := r.ReadValue()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case tagDict:
		n, err := r.readUint16()
		if err != nil {
			return nil, err
		}
		dict := make(map[string]interface{}, n)
		for i := 0; i < int(n); i++ {
			key, err := r.readKey()
			if err != nil {
				return nil, err
			}
			v, err := r.ReadValue()
			if err != nil {
				return nil, err
			}
			dict[key] = v
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("serializer: unknown tag 0x%02X", tag)
	}
}

func (r *Reader) readKey() (string, error) {
	tag, err := r.readByte()
	if err != nil {
		return "", err
	}
	switch tag {
	case tagKeyKnown:
		id, err := r.readByte()
		if err != nil {
			return "", err
		}
		if r.cb != nil {
			if key, ok := r.cb.Key(id); ok {
				return key, nil
			}
		}
		return "", fmt.Errorf("serializer: unknown codebook id %d", id)
	case tagKeyUnknown:
		return r.readUTF8()
	default:
		return "", fmt.Errorf("serializer: unknown dict-key tag 0x%02X", tag)
	}
}

// Encode is a convenience wrapper returning the encoded bytes for a
// single value.
func Encode(v interface{}, cb *codebook.Codebook) ([]byte, error) {
	w := NewWriter(cb)
	if err := w.WriteValue(v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode is a convenience wrapper decoding a single value from buf.
func Decode(buf []byte, cb *codebook.Codebook) (interface{}, error) {
	r := NewReader(buf, cb)
	return r.ReadValue()
}
