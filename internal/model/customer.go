package model

import (
	"regexp"
	"strings"
)

var emailRegexp = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Address is postal address embedded into customer
type Address struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	ZipCode string `json:"zipCode" bson:"zipCode"`
	Country string `json:"country" bson:"country"`
}

// Customer is customer model entity
type Customer struct {
	ID        string  `json:"id" bson:"_id,omitempty" msgpack:"id"`
	Name      string  `json:"name" bson:"name" msgpack:"name"`
	Email     string  `json:"email" bson:"email" msgpack:"email"`
	Phone     string  `json:"phone" bson:"phone" msgpack:"phone"`
	Address   Address `json:"address" bson:"address" msgpack:"address"`
	PhotoURL  *string `json:"photoURL" bson:"photoURL" msgpack:"photoURL"`
	CreatedAt int64   `json:"createdAt" bson:"createdAt" msgpack:"createdAt"`
	UpdatedAt int64   `json:"updatedAt" bson:"updatedAt" msgpack:"updatedAt"`
}

// HasPhoto reports whether customer references stored photo
func (c *Customer) HasPhoto() bool {
	return c.PhotoURL != nil && *c.PhotoURL != ""
}

// CustomerForm is input data for customer creation and update
type CustomerForm struct {
	Name    string
	Email   string
	Phone   string
	Address Address
	Photo   PhotoChange
}

// Violation returns field name and message of the first broken precondition or empty strings
func (f *CustomerForm) Violation() (string, string) {
	if strings.TrimSpace(f.Name) == "" {
		return "name", "name is required"
	}

	if f.Email != "" && !emailRegexp.MatchString(f.Email) {
		return "email", "email has invalid format"
	}
	return "", ""
}

// PhotoAction is kind of photo change requested by customer form
type PhotoAction int

const (
	// PhotoKeep leaves existing photo untouched
	PhotoKeep PhotoAction = iota
	// PhotoReplace uploads new photo and drops the previous one
	PhotoReplace
	// PhotoClear drops existing photo
	PhotoClear
)

// PhotoChange is tagged photo instruction, zero value keeps existing photo
type PhotoChange struct {
	action   PhotoAction
	content  []byte
	filename string
}

// KeepPhoto builds change which leaves photo as is
func KeepPhoto() PhotoChange {
	return PhotoChange{action: PhotoKeep}
}

// ReplacePhoto builds change which uploads provided content
func ReplacePhoto(content []byte, filename string) PhotoChange {
	return PhotoChange{action: PhotoReplace, content: content, filename: filename}
}

// ClearPhoto builds change which removes photo
func ClearPhoto() PhotoChange {
	return PhotoChange{action: PhotoClear}
}

// Action returns requested photo action
func (p PhotoChange) Action() PhotoAction {
	return p.action
}

// Content returns photo bytes, only meaningful for PhotoReplace
func (p PhotoChange) Content() []byte {
	return p.content
}

// Filename returns original photo file name, only meaningful for PhotoReplace
func (p PhotoChange) Filename() string {
	return p.filename
}
