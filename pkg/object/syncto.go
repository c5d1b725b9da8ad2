package object

import "reflect"

// PrunedMarker is the in-memory sentinel a Transmitter writes into a
// STRING field, on a cloned object, to signal "unchanged since the last
// send — the wire encoding should carry the pruned marker, not the real
// value". The Serializer maps it to/from the explicit on-wire length
// marker 0xFFFF (see pkg/serializer). It round-trips like any other
// string value, so the serialization round-trip law still holds for it.
const PrunedMarker = "￿"

// SyncOptions controls how SyncTo reconciles one instance's fields onto
// another.
type SyncOptions struct {
	// PreserveNested skips CLASSINSTANCE and LIST fields entirely, so the
	// destination's own nested object identity survives. Extrapolate uses
	// this for objects that already exist locally (spec.md §4.8.1).
	PreserveNested bool
}

// SyncTo copies dst's netScheme fields from src, field by field, honoring
// the pruned/empty-string skip rule and PreserveNested. dst and src must
// be pointers to the same registered class.
func SyncTo(dst, src Instance, opts SyncOptions) {
	if dst.ClassName() != src.ClassName() {
		return
	}

	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()

	for _, f := range dst.NetScheme() {
		sf := sv.FieldByName(f.Name)
		df := dv.FieldByName(f.Name)
		if !sf.IsValid() || !df.IsValid() || !df.CanSet() {
			continue
		}

		switch f.Type {
		case FieldClassInstance, FieldList:
			if opts.PreserveNested {
				continue
			}
			df.Set(sf)
		case FieldString:
			value := sf.String()
			if value == PrunedMarker || value == "" {
				continue
			}
			df.SetString(value)
		default:
			setNumeric(df, sf)
		}
	}
}

func setNumeric(dst, src reflect.Value) {
	if !dst.CanSet() {
		return
	}
	if src.Type() == dst.Type() {
		dst.Set(src)
		return
	}
	dst.Set(src.Convert(dst.Type()))
}
