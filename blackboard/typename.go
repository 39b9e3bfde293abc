package blackboard

import "reflect"

// TypeName derives the fully-qualified type name used to key blackboard
// lookups. Values implementing TypeNamer control their own name (useful for
// codec-decoded values that want a stable logical name independent of the Go
// package path); everything else is named "<package path>.<type name>" via
// reflection, following pointers and slices down to their element type so
// that *Frog and []Frog both register under a name compatible with a Frog
// input binding.
func TypeName(value any) string {
	if value == nil {
		return ""
	}
	if tn, ok := value.(TypeNamer); ok {
		return tn.TypeName()
	}
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
