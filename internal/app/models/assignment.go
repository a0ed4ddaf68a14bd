package models

import "time"

// Assignment links an FCAR to an instructor responsible for it. The FCAR's
// own instructor column records the owner; assignments cover co-instructors
// consulted by access control.
type Assignment struct {
	ID           int64     `json:"id" db:"assignment_id"`
	FCARID       int64     `json:"fcarId" db:"fcar_id"`
	InstructorID int64     `json:"instructorId" db:"instructor_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
