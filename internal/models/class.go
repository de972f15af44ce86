package models

import "time"

// Class is a school class used to scope announcements.
type Class struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Section subdivides a class.
type Section struct {
	ID      string `db:"id" json:"id"`
	ClassID string `db:"class_id" json:"class_id"`
	Name    string `db:"name" json:"name"`
}

// Student is the minimal student projection needed by fee queries.
type Student struct {
	ID       string  `db:"id" json:"id"`
	SchoolID string  `db:"school_id" json:"school_id"`
	FullName string  `db:"full_name" json:"full_name"`
	ClassID  *string `db:"class_id" json:"class_id,omitempty"`
}
