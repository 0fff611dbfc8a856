package beans

import "reflect"

// TypeOf returns the reflect.Type of T, interfaces included.
//
//	beans.TypeOf[io.Reader]()    // io.Reader, not nil
//	beans.TypeOf[*UserService]() // *UserService
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
