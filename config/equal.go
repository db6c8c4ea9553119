package config

import "reflect"

// equalChainFields compares two Chain values field-by-field via
// reflect.DeepEqual — Chain carries slices and maps, so a plain == is not
// an option.
func equalChainFields(a, b Chain) bool {
	return reflect.DeepEqual(a, b)
}
