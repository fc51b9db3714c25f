package errors

import (
	"encoding/json"
	"fmt"
)

// ValidationErr is raised when caller-supplied data violates precondition
type ValidationErr struct {
	target  string
	message string
}

func (e *ValidationErr) Error() string {
	return e.message
}

// Target returns name of the invalid field
func (e *ValidationErr) Target() string {
	return e.target
}

// MarshalJSON implements json.Marshaler
func (e *ValidationErr) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Target  string `json:"target"`
		Message string `json:"message"`
	}{Target: e.target, Message: e.message})
}

// NewValidationErr builds ValidationErr
func NewValidationErr(target string, msg string) error {
	return &ValidationErr{
		target:  target,
		message: msg,
	}
}

// NotFoundErr is raised when referenced entry is absent
type NotFoundErr struct {
	message string
}

func (e *NotFoundErr) Error() string {
	return e.message
}

// NewNotFoundErr builds NotFoundErr
func NewNotFoundErr(msg string) *NotFoundErr {
	return &NotFoundErr{message: msg}
}

// StoreErr is raised when document store call failed
type StoreErr struct {
	op  string
	err error
}

func (e *StoreErr) Error() string {
	return fmt.Sprintf("store failed to %s - %v", e.op, e.err)
}

func (e *StoreErr) Unwrap() error {
	return e.err
}

// NewStoreErr wraps document store failure for operation op
func NewStoreErr(op string, err error) error {
	return &StoreErr{op: op, err: err}
}

// StorageErr is raised when blob storage call failed
type StorageErr struct {
	op  string
	err error
}

func (e *StorageErr) Error() string {
	return fmt.Sprintf("storage failed to %s - %v", e.op, e.err)
}

func (e *StorageErr) Unwrap() error {
	return e.err
}

// NewStorageErr wraps blob storage failure for operation op
func NewStorageErr(op string, err error) error {
	return &StorageErr{op: op, err: err}
}
