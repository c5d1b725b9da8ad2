package object

// FieldType enumerates the wire types a netScheme field can declare.
type FieldType uint8

const (
	FieldUint8 FieldType = iota
	FieldInt16
	FieldInt32
	FieldFloat32
	FieldString
	FieldClassInstance
	FieldList
)

// FieldScheme describes one netScheme entry. Elem is only meaningful for
// FieldList, where it describes the type of each list item (which may
// itself be FieldClassInstance, in which case list items self-describe
// their class via the classId prefix written at encode time).
type FieldScheme struct {
	Name string
	Type FieldType
	Elem *FieldScheme
}

// NetScheme is the ordered list of fields that participate in wire
// encoding and in syncTo. Order matters: it is the wire order.
type NetScheme []FieldScheme

// Vector is the CLASSINSTANCE used for Position and Velocity. It is a
// first-class registered class so that CLASSINSTANCE recursion exercises
// the same registry/classId machinery as any other nested object.
type Vector struct {
	X float32
	Y float32
}

func (v *Vector) ClassName() string { return "Vector" }

func (v *Vector) NetScheme() NetScheme {
	return NetScheme{
		{Name: "X", Type: FieldFloat32},
		{Name: "Y", Type: FieldFloat32},
	}
}
