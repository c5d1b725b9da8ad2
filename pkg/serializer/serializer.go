// Package serializer implements the scheme-driven binary codec described
// in spec.md §4.1: a registry from class name to a stable 8-bit class id,
// and an encoder/decoder that walks a class's netScheme in order,
// big-endian throughout.
package serializer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"unicode/utf16"

	"github.com/solstice-games/syncstep/pkg/object"
)

// ErrUnknownClassID is returned by Decode when the leading class id byte
// has no registered descriptor.
var ErrUnknownClassID = errors.New("serializer: unknown class id")

// ErrTruncatedBuffer is returned by Decode when the buffer runs out before
// a netScheme field can be fully read.
var ErrTruncatedBuffer = errors.New("serializer: truncated buffer")

// ErrClassIDCollision is returned by Register when two distinct class
// names hash to the same 8-bit class id.
var ErrClassIDCollision = errors.New("serializer: class id collision")

// prunedStringLength is the on-wire length marker for a pruned string
// field, distinct from a genuinely empty string (length 0). This resolves
// the "string pruning marker" open question in spec.md §9.
const prunedStringLength = 0xFFFF

type descriptor struct {
	classID   byte
	className string
	new       func() object.Instance
}

// Serializer is the class registry plus the encode/decode entry points.
// It is safe for concurrent use after all classes have been registered;
// Register itself is not concurrency-safe and is expected to run once at
// startup.
type Serializer struct {
	byName map[string]*descriptor
	byID   map[byte]*descriptor
}

func New() *Serializer {
	return &Serializer{
		byName: make(map[string]*descriptor),
		byID:   make(map[byte]*descriptor),
	}
}

// classID computes the stable 8-bit hash of a class name.
func classID(name string) byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return byte(h.Sum32())
}

// Register adds a class to the registry. new must return a bare,
// zero-valued instance of the class (no engine reference), as Decode
// needs to construct one for every decoded instance.
func (s *Serializer) Register(sample object.Instance, newFn func() object.Instance) error {
	name := sample.ClassName()
	id := classID(name)

	if existing, ok := s.byID[id]; ok && existing.className != name {
		return fmt.Errorf("%w: %q and %q both hash to %d", ErrClassIDCollision, existing.className, name, id)
	}

	d := &descriptor{classID: id, className: name, new: newFn}
	s.byName[name] = d
	s.byID[id] = d
	return nil
}

// Encode writes instance as classId:u8 followed by its netScheme fields in
// order.
func (s *Serializer) Encode(instance object.Instance) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := s.encodeInstance(buf, instance); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one classId-prefixed instance from data and returns it
// along with any trailing bytes.
func (s *Serializer) Decode(data []byte) (object.Instance, []byte, error) {
	c := &cursor{buf: data}
	inst, err := s.decodeInstance(c)
	if err != nil {
		return nil, nil, err
	}
	return inst, data[c.off:], nil
}

func (s *Serializer) encodeInstance(buf *bytes.Buffer, instance object.Instance) error {
	d, ok := s.byName[instance.ClassName()]
	if !ok {
		return fmt.Errorf("%w: class %q is not registered", ErrUnknownClassID, instance.ClassName())
	}
	buf.WriteByte(d.classID)

	v := reflect.ValueOf(instance).Elem()
	for _, f := range instance.NetScheme() {
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() {
			return fmt.Errorf("serializer: class %q has no field %q", instance.ClassName(), f.Name)
		}
		if err := s.encodeField(buf, f, fv); err != nil {
			return fmt.Errorf("serializer: encoding field %q of %q: %w", f.Name, instance.ClassName(), err)
		}
	}
	return nil
}

func (s *Serializer) encodeField(buf *bytes.Buffer, f object.FieldScheme, fv reflect.Value) error {
	switch f.Type {
	case object.FieldUint8:
		buf.WriteByte(byte(intOf(fv)))
	case object.FieldInt16:
		return binary.Write(buf, binary.BigEndian, int16(intOf(fv)))
	case object.FieldInt32:
		return binary.Write(buf, binary.BigEndian, int32(intOf(fv)))
	case object.FieldFloat32:
		return binary.Write(buf, binary.BigEndian, float32(fv.Float()))
	case object.FieldString:
		return encodeString(buf, fv.String())
	case object.FieldClassInstance:
		inst, err := instanceOf(fv)
		if err != nil {
			return err
		}
		return s.encodeInstance(buf, inst)
	case object.FieldList:
		return s.encodeList(buf, f, fv)
	default:
		return fmt.Errorf("unknown field type %d", f.Type)
	}
	return nil
}

func (s *Serializer) encodeList(buf *bytes.Buffer, f object.FieldScheme, fv reflect.Value) error {
	n := fv.Len()
	if err := binary.Write(buf, binary.BigEndian, uint16(n)); err != nil {
		return err
	}
	elem := *f.Elem
	for i := 0; i < n; i++ {
		if err := s.encodeField(buf, elem, fv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeString(buf *bytes.Buffer, value string) error {
	if value == object.PrunedMarker {
		return binary.Write(buf, binary.BigEndian, uint16(prunedStringLength))
	}
	units := utf16.Encode([]rune(value))
	if len(units) >= prunedStringLength {
		return fmt.Errorf("string too long to encode: %d code units", len(units))
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(units))); err != nil {
		return err
	}
	for _, u := range units {
		if err := binary.Write(buf, binary.BigEndian, u); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) decodeInstance(c *cursor) (object.Instance, error) {
	id, err := c.readByte()
	if err != nil {
		return nil, ErrTruncatedBuffer
	}
	d, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClassID, id)
	}

	instance := d.new()
	v := reflect.ValueOf(instance).Elem()
	for _, f := range instance.NetScheme() {
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() || !fv.CanSet() {
			return nil, fmt.Errorf("serializer: class %q has no settable field %q", instance.ClassName(), f.Name)
		}
		if err := s.decodeField(c, f, fv); err != nil {
			return nil, fmt.Errorf("serializer: decoding field %q of %q: %w", f.Name, instance.ClassName(), err)
		}
	}
	return instance, nil
}

func (s *Serializer) decodeField(c *cursor, f object.FieldScheme, fv reflect.Value) error {
	switch f.Type {
	case object.FieldUint8:
		b, err := c.readByte()
		if err != nil {
			return ErrTruncatedBuffer
		}
		setInt(fv, int64(b))
	case object.FieldInt16:
		var x int16
		if err := c.readBinary(&x); err != nil {
			return err
		}
		setInt(fv, int64(x))
	case object.FieldInt32:
		var x int32
		if err := c.readBinary(&x); err != nil {
			return err
		}
		setInt(fv, int64(x))
	case object.FieldFloat32:
		var x float32
		if err := c.readBinary(&x); err != nil {
			return err
		}
		fv.SetFloat(float64(x))
	case object.FieldString:
		str, err := decodeString(c)
		if err != nil {
			return err
		}
		fv.SetString(str)
	case object.FieldClassInstance:
		inst, err := s.decodeInstance(c)
		if err != nil {
			return err
		}
		setInstance(fv, inst)
	case object.FieldList:
		return s.decodeList(c, f, fv)
	default:
		return fmt.Errorf("unknown field type %d", f.Type)
	}
	return nil
}

func (s *Serializer) decodeList(c *cursor, f object.FieldScheme, fv reflect.Value) error {
	var n uint16
	if err := c.readBinary(&n); err != nil {
		return err
	}
	elem := *f.Elem
	slice := reflect.MakeSlice(fv.Type(), int(n), int(n))
	for i := 0; i < int(n); i++ {
		if err := s.decodeField(c, elem, slice.Index(i)); err != nil {
			return err
		}
	}
	fv.Set(slice)
	return nil
}

func decodeString(c *cursor) (string, error) {
	var length uint16
	if err := c.readBinary(&length); err != nil {
		return "", err
	}
	if length == prunedStringLength {
		return object.PrunedMarker, nil
	}
	units := make([]uint16, length)
	for i := range units {
		if err := c.readBinary(&units[i]); err != nil {
			return "", err
		}
	}
	return string(utf16.Decode(units)), nil
}

// instanceOf returns fv as an object.Instance, taking its address if fv is
// an addressable struct value (as Position/Velocity fields are).
func instanceOf(fv reflect.Value) (object.Instance, error) {
	v := fv
	if v.Kind() != reflect.Ptr {
		if !v.CanAddr() {
			return nil, fmt.Errorf("CLASSINSTANCE field is not addressable")
		}
		v = v.Addr()
	}
	inst, ok := v.Interface().(object.Instance)
	if !ok {
		return nil, fmt.Errorf("CLASSINSTANCE field does not implement object.Instance")
	}
	return inst, nil
}

// setInstance writes a decoded child instance back into a struct field
// that holds it by value (e.g. Position Vector), or by pointer.
func setInstance(fv reflect.Value, inst object.Instance) {
	iv := reflect.ValueOf(inst)
	if fv.Kind() == reflect.Ptr {
		fv.Set(iv)
		return
	}
	fv.Set(iv.Elem())
}

func intOf(fv reflect.Value) int64 {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint())
	default:
		return 0
	}
}

func setInt(fv reflect.Value, val int64) {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(val)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fv.SetUint(uint64(val))
	}
}

// cursor is a minimal read-only byte cursor with bounds checking, used
// instead of bytes.Reader so we can report ErrTruncatedBuffer uniformly.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) readByte() (byte, error) {
	if c.off >= len(c.buf) {
		return 0, ErrTruncatedBuffer
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

func (c *cursor) readBinary(dst interface{}) error {
	n := binary.Size(dst)
	if n < 0 || c.off+n > len(c.buf) {
		return ErrTruncatedBuffer
	}
	r := bytes.NewReader(c.buf[c.off : c.off+n])
	if err := binary.Read(r, binary.BigEndian, dst); err != nil {
		return ErrTruncatedBuffer
	}
	c.off += n
	return nil
}
