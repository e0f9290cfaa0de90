package mutate

import "fmt"

type UnknownKindError struct {
	Kind string
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("unknown operation kind: %q", e.Kind)
}

type MissingFieldError struct {
	Kind  Kind
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Kind, e.Field)
}
