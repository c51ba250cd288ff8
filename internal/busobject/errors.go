package busobject

import "errors"

var (
	// ErrIllegalPath is returned when a path given to NewObject or
	// Registry.Register is not a legal object path (wire.IsLegalObjectPath).
	ErrIllegalPath = errors.New("busobject: illegal object path")

	// ErrStandardInterface is returned from AddInterface when the caller
	// tries to add one of the implicitly-present standard interfaces
	// manually (spec.md §6 "cannot be added manually").
	ErrStandardInterface = errors.New("busobject: standard interfaces are implicit and cannot be added")

	// ErrInterfaceNotFound is returned when a method handler names an
	// interface the object has not added.
	ErrInterfaceNotFound = errors.New("busobject: interface not added to this object")

	// ErrMemberNotFound is returned when a method handler names a member
	// the named interface does not declare.
	ErrMemberNotFound = errors.New("busobject: interface has no such member")

	// ErrAlreadyRegistered is returned from AddMethodHandler once the
	// object has been installed in a Registry (spec.md:49 "a method
	// handler may be added only while the object is not yet registered").
	ErrAlreadyRegistered = errors.New("busobject: cannot add method handler to an object that is already registered")
)
