package object

import "reflect"

// CurrentStringFields reads every STRING netScheme field off inst without
// modifying it, keyed by field name.
func CurrentStringFields(inst Instance) map[string]string {
	v := reflect.ValueOf(inst).Elem()
	values := make(map[string]string)
	for _, f := range inst.NetScheme() {
		if f.Type != FieldString {
			continue
		}
		fv := v.FieldByName(f.Name)
		if fv.IsValid() {
			values[f.Name] = fv.String()
		}
	}
	return values
}

// PruneUnchangedStrings mutates clone's STRING netScheme fields that are
// identical to their value in previous into PrunedMarker, and returns the
// clone's unpruned current values so the caller can remember them as the
// baseline for the next comparison.
func PruneUnchangedStrings(clone Instance, previous map[string]string) map[string]string {
	v := reflect.ValueOf(clone).Elem()
	current := make(map[string]string)
	for _, f := range clone.NetScheme() {
		if f.Type != FieldString {
			continue
		}
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() {
			continue
		}
		value := fv.String()
		current[f.Name] = value
		if prev, ok := previous[f.Name]; ok && prev == value {
			fv.SetString(PrunedMarker)
		}
	}
	return current
}
